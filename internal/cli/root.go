// Package cli wires the bookshare commands.
package cli

import (
	"os"

	"github.com/isdelr/bookshare-be/internal/config"
	"github.com/isdelr/bookshare-be/internal/logger"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the bookshare command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "bookshare",
		Short:         "Peer-to-peer book lending coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path to an optional YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(cfg.LogLevel, cfg.IsProduction())
		return cfg, nil
	}

	root.AddCommand(
		newServeCommand(load),
		newMigrateCommand(load),
		newRegisterCommand(load, os.Stdin, passwordPrompt),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
