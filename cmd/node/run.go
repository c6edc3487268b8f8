package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yaoapp/node"
	"github.com/yaoapp/node/watch"
)

// RunOptions the flags of the run command
type RunOptions struct {
	*RootOptions
	Timeout time.Duration
	Quiet   bool
}

// NewRunCommand create the run command
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [code]",
		Short: "Evaluate script code with the files of the root directory",
		Long: `Evaluate script code with the files of the root directory.

The .js, .ts and .json files of the root directory are defined before the
engine starts, the code is read from stdin when it is not given.

Example:
  node run -r ./scripts "require('hello.js').hello('node')"`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := ""
			if len(args) > 0 {
				code = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				code = string(data)
			}
			return run(cmd, opts, code)
		},
	}

	cmd.Flags().DurationVarP(&opts.Timeout, "timeout", "t", 10*time.Second, "the evaluation timeout")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print the result only")
	return cmd
}

func run(cmd *cobra.Command, opts *RunOptions, code string) error {
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("the script code is required")
	}

	engine, err := load(opts.RootOptions)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := engine.StartWait(ctx, opts.Root); err != nil {
		return err
	}

	result, err := engine.CallScriptWait(ctx, code)
	if err != nil {
		return err
	}

	if result == "" {
		result = "undefined"
	}

	if opts.Quiet {
		fmt.Fprintln(cmd.OutOrStdout(), result)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("%s", result))
	return nil
}

// load create an engine and define the script files of the root directory
func load(opts *RootOptions) (*node.Engine, error) {
	option, err := opts.option()
	if err != nil {
		return nil, err
	}

	engine, err := node.New(option)
	if err != nil {
		return nil, err
	}

	w, err := watch.New(opts.Root, engine)
	if err != nil {
		engine.Close()
		return nil, err
	}

	if _, err := w.Skip(engine.GetMainScriptFileName()).Load(); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}
