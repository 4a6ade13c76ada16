package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/ragchat/internal/config"
	"github.com/felixgeelhaar/ragchat/internal/credential"
)

// keyAliases maps short names accepted by config set/get to dotted keys.
var keyAliases = map[string]string{
	"api_key":  "llm.api_key",
	"provider": "llm.provider",
	"model":    "llm.model",
	"db_path":  "store.path",
}

func resolveKey(key string) string {
	if k, ok := keyAliases[key]; ok {
		return k
	}
	return key
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(
		newConfigShowCmd(root),
		newConfigInitCmd(root),
		newConfigSetCmd(root),
		newConfigGetCmd(root),
	)
	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.LLM.APIKey = credential.MaskSecret(cfg.LLM.APIKey)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.configFile()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func newConfigSetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a configuration value in the config file",
		Long:  "Set a configuration value. Keys: " + fmt.Sprint(config.Keys()),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := resolveKey(args[0]), args[1]
			path := root.configFile()

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if config.IsSecret(key) {
				mgr, err := credential.NewManager()
				if err != nil {
					return err
				}
				if value, err = mgr.Encrypt(value); err != nil {
					return err
				}
			}
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved: %s\n", key)
			return nil
		},
	}
}

func newConfigGetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Get an effective configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := resolveKey(args[0])
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			val, err := cfg.Get(key)
			if err != nil {
				return err
			}
			if config.IsSecret(key) {
				val = credential.MaskSecret(val)
			}
			if val == "" {
				val = "(not set)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	}
}
