package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soyeahso/leechcore/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration values",
		Long: "Read and edit the YAML config by dotted key, e.g. core.tiePolicy or " +
			"plugins.fetch.dir. Edits are validated before they are saved.",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.ParseKeyPath(args[0])
			if err != nil {
				return err
			}
			raw, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}
			val, ok := key.Get(raw)
			if !ok {
				return fmt.Errorf("key %q is not set", key)
			}
			return printValue(cmd.OutOrStdout(), val)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Long: "Set a value. true/false and numbers are stored typed; a value starting " +
			"with [ is parsed as a YAML list, e.g. '[notifylog, fetch]'.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.ParseKeyPath(args[0])
			if err != nil {
				return err
			}
			value := parseValue(args[1])
			return editConfig(func(raw map[string]any) error {
				key.Set(raw, value)
				return nil
			}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
			})
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.ParseKeyPath(args[0])
			if err != nil {
				return err
			}
			return editConfig(func(raw map[string]any) error {
				if !key.Unset(raw) {
					return fmt.Errorf("key %q is not set", key)
				}
				return nil
			}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)
			})
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config with defaults and overrides applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			redact(&cfg)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
		},
	}
}

// editConfig loads the raw config, applies edit, validates the result and
// saves it. Nothing is written when the edited config is invalid.
func editConfig(edit func(raw map[string]any) error, done func()) error {
	raw, err := config.LoadRaw(paths.Config)
	if err != nil {
		return err
	}
	if err := edit(raw); err != nil {
		return err
	}
	if err := config.CheckRaw(raw); err != nil {
		return err
	}
	if err := config.SaveRaw(paths.Config, raw); err != nil {
		return err
	}
	done()
	return nil
}

const redacted = "********"

func redact(cfg *config.Config) {
	for _, s := range []*string{&cfg.Gateway.Auth.Token, &cfg.Gateway.Auth.Password} {
		if *s != "" {
			*s = redacted
		}
	}
	if cfg.Plugins.IRC != nil && cfg.Plugins.IRC.Password != "" {
		cfg.Plugins.IRC.Password = redacted
	}
	if m := cfg.Plugins.Mail; m != nil {
		for _, s := range []*string{&m.Password} {
			if *s != "" {
				*s = redacted
			}
		}
		if o := m.OAuth; o != nil {
			for _, s := range []*string{&o.ClientSecret, &o.RefreshToken} {
				if *s != "" {
					*s = redacted
				}
			}
		}
	}
}

// printValue prints scalars as-is and maps and lists as YAML.
func printValue(w io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, v)
		return err
	}
}

// parseValue interprets a command-line value as a bool, number, YAML list
// or string.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.HasPrefix(s, "[") {
		var list []any
		if err := yaml.Unmarshal([]byte(s), &list); err == nil {
			return list
		}
	}
	return s
}
