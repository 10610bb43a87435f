package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
)

func newConfigCmd(a *app) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Edit, show and validate the config files",
		Long: `Open a config file in $VISUAL, $EDITOR or nano. A missing file is created
from its starter template first.

Known files: ` + strings.Join(config.KnownFiles, ", "),
		Example: `  exchange config -c api_config
  exchange config show azure_config --format json
  exchange config validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configFile == "" {
				return errors.WrapInvalid(
					fmt.Errorf("%w: config file name is required (-c)", errors.ErrMissingConfig), "cli", "config", "parse flags")
			}

			created, err := a.loader.Ensure(configFile, false)
			if err != nil {
				return err
			}
			if created != "" {
				a.logger.Info("Config file created from template", "path", created)
			}

			path, err := a.loader.Path(configFile)
			if err != nil {
				return err
			}
			return a.edit(cmd.Context(), path)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config-file", "c", "", "Config file name, with or without .json")

	cmd.AddCommand(
		newConfigShowCmd(a),
		newConfigValidateCmd(a),
		newConfigInitCmd(a),
		newConfigPathCmd(a),
		newConfigSchemaCmd(a),
	)
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a config file with secrets masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.loader.Render(args[0], format)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", config.FormatYAML, "Output format: yaml, json")
	return cmd
}

func newConfigValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate every config file present against its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			failed := 0
			for _, st := range a.loader.ValidateAll() {
				switch {
				case !st.Present:
					fmt.Fprintf(a.stdout, "missing  %s\n", st.Path)
				case st.Err != nil:
					failed++
					fmt.Fprintf(a.stdout, "invalid  %s: %v\n", st.Path, st.Err)
				default:
					fmt.Fprintf(a.stdout, "ok       %s\n", st.Path)
				}
			}
			if failed > 0 {
				return errors.WrapInvalid(
					fmt.Errorf("%w: %d config file(s) failed validation", errors.ErrInvalidConfig, failed), "cli", "config validate", "validate files")
			}
			return nil
		},
	}
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write starter templates for missing config files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			written, err := a.loader.Init(force)
			for _, path := range written {
				fmt.Fprintf(a.stdout, "created  %s\n", path)
			}
			if err != nil {
				return err
			}
			if len(written) == 0 {
				fmt.Fprintln(a.stdout, "all config files already exist")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(a.stdout, a.loader.Dir())
			return err
		},
	}
}

func newConfigSchemaCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "schema [name]",
		Short: "Print the JSON Schema of a config file, or export them all",
		Long: `With a name, print the JSON Schema that file is validated against.
With --out, write <name>.v1.json for every known config file into the
directory so editors can validate the files as they are typed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				if len(args) == 0 {
					return fmt.Errorf("%w: a config name or --out is required", errors.ErrInvalidConfig)
				}
				schema, err := config.Schema(args[0])
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(schema)
				return err
			}

			names := config.KnownFiles
			if len(args) == 1 {
				names = args
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			for _, name := range names {
				schema, err := config.Schema(name)
				if err != nil {
					return err
				}
				outFile := filepath.Join(outDir, strings.TrimSuffix(name, ".json")+".v1.json")
				if err := os.WriteFile(outFile, schema, 0o644); err != nil {
					return fmt.Errorf("write schema %s: %w", outFile, err)
				}
				a.logger.Info("Schema exported", "file", outFile)
				if _, err := fmt.Fprintln(a.stdout, outFile); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to export schemas into")
	return cmd
}
