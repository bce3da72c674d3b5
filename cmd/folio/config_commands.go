package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Write or check the folio configuration",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

// newConfigInitCommand writes the sample file and then checks it the same
// way validate does, so a written file is known to load.
func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration and check it",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists (pass --overwrite to replace it)", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("check config path: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			cfg, _, _, err := config.Load(target)
			if err != nil {
				return fmt.Errorf("sample config does not load: %w", err)
			}
			if err := reportConfig(out, cfg, target, true); err != nil {
				return err
			}
			fmt.Fprintln(out, "Set paths.library_dir and organize.target_dir before starting the daemon.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the configuration (default ~/.config/folio/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	if value := strings.TrimSpace(flagValue); value != "" {
		expanded, err := config.ExpandPath(value)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration, create its directories and check the transition table",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			return reportConfig(cmd.OutOrStdout(), cfg, path, exists)
		},
	}
}

// reportConfig loads the configured transition table and prints the
// settings an operator most often gets wrong.
func reportConfig(out io.Writer, cfg *config.Config, path string, exists bool) error {
	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	source := "built-in"
	if strings.TrimSpace(cfg.Lifecycle.TablePath) != "" {
		source = cfg.Lifecycle.TablePath
	}

	fmt.Fprintf(out, "Config path: %s\n", path)
	if !exists {
		fmt.Fprintln(out, "Config file did not exist; defaults were used")
	}
	fmt.Fprintf(out, "Library:     %s\n", cfg.Paths.LibraryDir)
	fmt.Fprintf(out, "Database:    %s\n", cfg.DatabasePath())
	fmt.Fprintf(out, "Locks:       %s\n", cfg.Jobs.LockBackend)
	fmt.Fprintf(out, "Jobs:        %s\n", strings.Join(cfg.Jobs.Enabled, ", "))
	fmt.Fprintf(out, "Table:       %s (%d rules)\n", source, table.Len())
	fmt.Fprintln(out, "Configuration valid")
	return nil
}
