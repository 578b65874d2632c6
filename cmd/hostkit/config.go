// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/hostkit/hostkit/internal/config"
	"github.com/hostkit/hostkit/internal/ui"
)

// newConfigCommand creates the `hostkit config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage hostkit configuration",
		Long: `Manage hostkit configuration.

Configuration is read from the first file found:
  - $XDG_CONFIG_HOME/hostkit/config.cue (usually ~/.config/hostkit/config.cue)
  - $XDG_CONFIG_HOME/hostkit/settings.json
  - ./config.cue or ./settings.json

settings.json files written for the original setup scripts are accepted as-is.`,
		Annotations: map[string]string{annotationConfigOptional: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: app.run(func(ctx context.Context, _ []string) error {
			return showConfig(app)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: app.run(func(context.Context, []string) error {
			return initConfig(app)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: app.run(func(context.Context, []string) error {
			return showConfigPath(app)
		}),
	})

	var asJSON bool
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: app.run(func(context.Context, []string) error {
			if asJSON {
				data, err := config.MarshalJSON(app.cfg)
				if err != nil {
					return err
				}
				fmt.Fprintln(app.stdout, string(data))
				return nil
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
			return nil
		}),
	}
	dumpCmd.Flags().BoolVar(&asJSON, "json", false, "output in the settings.json layout")
	cfgCmd.AddCommand(dumpCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the CUE schema configuration files are checked against",
		RunE: app.run(func(context.Context, []string) error {
			fmt.Fprint(app.stdout, config.Schema())
			return nil
		}),
	})

	return cfgCmd
}

func showConfig(app *App) error {
	w := app.stdout
	keyStyle := ui.CmdStyle
	valueStyle := ui.SuccessStyle

	fmt.Fprintln(w, ui.TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if app.cfgPath != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), app.cfgPath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), ui.SubtitleStyle.Render("(using defaults)"))
	}

	sections, err := configSections(app.cfg)
	if err != nil {
		return err
	}
	for _, name := range sortedKeys(sections) {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s:\n", keyStyle.Render(name))
		values, ok := sections[name].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range sortedKeys(values) {
			fmt.Fprintf(w, "  %s: %s\n", key, valueStyle.Render(displayValue(values[key])))
		}
	}
	return nil
}

// configSections flattens cfg into its settings.json sections.
func configSections(cfg *config.Config) (map[string]any, error) {
	data, err := config.MarshalJSON(cfg)
	if err != nil {
		return nil, err
	}
	var sections map[string]any
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func displayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "(none)"
	case string:
		if x == "" {
			return `""`
		}
		return x
	case []any:
		if len(x) == 0 {
			return "[]"
		}
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = displayValue(e)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if len(x) == 0 {
			return "{}"
		}
		parts := make([]string, 0, len(x))
		for _, k := range sortedKeys(x) {
			parts = append(parts, k+"="+displayValue(x[k]))
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}

func initConfig(app *App) error {
	path, created, err := config.CreateDefaultConfig()
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		app.printer.Warn("Configuration already exists at %s", path)
		return nil
	}
	app.printer.Success("Created default configuration at %s", path)
	return nil
}

func showConfigPath(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	if app.cfgPath != "" {
		fmt.Fprintf(app.stdout, "Loaded from: %s\n", app.cfgPath)
	}
	if stateDir, err := config.StateDir(); err == nil {
		fmt.Fprintf(app.stdout, "State directory: %s\n", stateDir)
	}
	return nil
}
