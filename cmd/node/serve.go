package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/node/queue"
	"github.com/yaoapp/node/server"
	"github.com/yaoapp/node/watch"
)

// ServeOptions the flags of the serve command
type ServeOptions struct {
	*RootOptions
	Host    string
	Port    int
	Timeout time.Duration
	Watch   bool
	Allows  []string
}

// NewServeCommand create the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine and serve it over HTTP",
		Long: `Start the engine and serve it over HTTP.

Routes:
  GET  /api/status
  POST /api/start      {"root": "..."}
  POST /api/stop
  POST /api/files      {"name": "...", "code": "..."}
  POST /api/functions  {"name": "..."}
  POST /api/call       {"code": "..."}
  GET  /api/events     (websocket, call-from-script events)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "127.0.0.1", "the listening host")
	cmd.Flags().IntVarP(&opts.Port, "port", "p", 5099, "the listening port")
	cmd.Flags().DurationVarP(&opts.Timeout, "timeout", "t", 5*time.Second, "the engine operations timeout")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "redefine the script files when they change")
	cmd.Flags().StringSliceVar(&opts.Allows, "allows", nil, "the allowed websocket origins")
	return cmd
}

func serve(cmd *cobra.Command, opts *ServeOptions) error {
	engine, err := load(opts.RootOptions)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.StartWait(ctx, opts.Root); err != nil {
		return err
	}

	if opts.Watch {
		w, err := watch.New(opts.Root, engine)
		if err != nil {
			return err
		}
		w.Skip(engine.GetMainScriptFileName())
		go func() {
			err := w.Watch(ctx, func(event string, name string, err error) {
				if err != nil {
					log.Error("[Watch] %s %s %s", event, name, err.Error())
				}
			})
			if err != nil {
				log.Error("[Watch] %s", err.Error())
			}
		}()
	}

	srv := server.New(engine, server.Option{
		Host:    opts.Host,
		Port:    opts.Port,
		Root:    opts.Root,
		Timeout: opts.Timeout,
		Allows:  opts.Allows,
	})
	defer srv.Close()

	errs := make(chan error, 1)
	go func() { errs <- srv.Start() }()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	for {
		select {
		case status := <-srv.Event():
			if status == server.READY {
				port, _ := srv.Port()
				fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Node engine %s listening on %s:%d", engine.ID, opts.Host, port))
			}

		case <-interrupt:
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("Stopping..."))
			go func() {
				// a second signal does not wait for the engine worker
				<-interrupt
				log.Warn("[node] forced exit, the engine worker is left behind")
				queue.BeginTermination()
			}()
			if err := srv.Stop(); err != nil {
				return err
			}
			return <-errs

		case err := <-errs:
			return err
		}
	}
}
