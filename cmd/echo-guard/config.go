package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"echo-guard/internal/config"
)

var configKeys = []string{"home", "profile", "agent", "log_path", "log_level", "audit_path"}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the config file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective config",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := toml.Marshal(a.cfg)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "# %s\n", a.cfg.Source)
				_, err = out.Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "set key=value...",
			Short: "Write values to the config file",
			Long: "Write values to the config file. Keys: " + strings.Join(configKeys, ", ") + `.
Environment overrides are not written back.`,
			Args: cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, kv := range args {
					key, _, ok := strings.Cut(kv, "=")
					if !ok || !slices.Contains(configKeys, strings.TrimSpace(key)) {
						return fmt.Errorf("invalid setting %q; want key=value with key one of %s", kv, strings.Join(configKeys, ", "))
					}
				}
				cfg, err := config.LoadFile(a.cfgPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = config.ApplyKVOverrides(cfg, args)
				if err := config.Save("", cfg); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", cfg.Source)
				return nil
			},
		},
	)
	return cmd
}
