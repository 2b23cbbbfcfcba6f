// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/labelhub/internal/config"
	"github.com/holomush/labelhub/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the labelhub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labelhub",
		Short: "labelhub - custom label storefront",
		Long: `labelhub serves the storefront account API (register, login,
logout, current user) and the members dashboard, and manages a local
label cart from the command line.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/labelhub/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCartCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// resolveConfigPath returns the --config value, or the XDG config file when
// the flag is unset. An unresolvable XDG location means no file.
func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	path, err := xdg.ConfigFile()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// loadConfig loads configuration for a command. flags may be nil.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(resolveConfigPath(), flags)
}
