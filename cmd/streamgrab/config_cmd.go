// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamgrab/internal/config"
)

func newConfigCmd(f *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(f), newConfigValidateCmd(f), newConfigShowCmd(f))
	return cmd
}

func configPath(f *cliFlags) string {
	if f.configPath != "" {
		return f.configPath
	}
	return config.DefaultPath()
}

func newConfigInitCmd(f *cliFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(f)
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing file")
	return cmd
}

func newConfigValidateCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(f)
			if _, err := config.NewLoader(path).Load(); err != nil {
				return fmt.Errorf("configuration error in %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			return nil
		},
	}
}

func newConfigShowCmd(f *cliFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewOptionalLoader(config.DefaultPath())
			if f.configPath != "" {
				loader = config.NewLoader(f.configPath)
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			maskSecrets(&cfg)

			var out []byte
			switch format {
			case "yaml":
				out, err = config.Marshal(cfg)
			case "json":
				out, err = json.MarshalIndent(cfg, "", "  ")
				out = append(out, '\n')
			default:
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	return cmd
}

// maskSecrets hides cookie values; they usually carry session tokens.
func maskSecrets(cfg *config.AppConfig) {
	if len(cfg.HTTP.Cookies) == 0 {
		return
	}
	masked := make(map[string]string, len(cfg.HTTP.Cookies))
	for k := range cfg.HTTP.Cookies {
		masked[k] = "***"
	}
	cfg.HTTP.Cookies = masked
}
