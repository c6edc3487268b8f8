package main

import (
	"github.com/spf13/cobra"
	"github.com/yaoapp/node"
	"github.com/yaoapp/node/runtime"
)

// RootOptions the global flags
type RootOptions struct {
	Root    string
	Config  string
	Runtime string
	Level   string
}

// NewRootCommand create the root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run scripts in an embedded Node engine",
		Long:  "Define the script files of a directory in an embedded engine, then evaluate code or serve the engine over HTTP.",
	}

	cmd.PersistentFlags().StringVarP(&opts.Root, "root", "r", ".", "the working directory of the engine")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "the option file (.json, .yml or .yaml)")
	cmd.PersistentFlags().StringVar(&opts.Runtime, "runtime", "", "the interpreter backend, one of the registered runtimes")
	cmd.PersistentFlags().StringVar(&opts.Level, "log", "", "the log level (trace|debug|info|warn|error)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRuntimesCommand())
	return cmd
}

// NewRuntimesCommand list the registered runtimes
func NewRuntimesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "runtimes",
		Short: "List the interpreter backends",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range runtime.Names() {
				if name == runtime.Default {
					cmd.Printf("%s (default)\n", name)
					continue
				}
				cmd.Println(name)
			}
		},
	}
}

// option load the engine option, the flags override the option file
func (opts *RootOptions) option() (node.Option, error) {
	option := node.Option{}
	if opts.Config != "" {
		var err error
		option, err = node.LoadOption(opts.Config)
		if err != nil {
			return option, err
		}
	}

	if opts.Runtime != "" {
		option.Runtime = opts.Runtime
	}

	if opts.Level != "" {
		option.LogLevel = opts.Level
	}
	return option, nil
}
