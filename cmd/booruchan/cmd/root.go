package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/FalconSN/booruchan/pkg/config"
	"github.com/FalconSN/booruchan/pkg/dispatch"
)

// exitCode, when non-nil, overrides the code main() exits with; used to
// distinguish configuration errors (2) from generic failures (1) without
// teaching cobra's own error path about our exit codes.
var exitCode *int

var rootCmd = &cobra.Command{
	Use:   "booruchan",
	Short: "booruchan archives posts from Moebooru-family imageboards",
	Long: `booruchan paginates configured tag queries against yande.re,
konachan.com, and sakugabooru.com, downloads every non-deleted post's
original file, optionally produces a size-capped JPEG derivative,
optionally uploads both to a cloud backend, and records each archived
post in a local catalog so repeated runs skip or relocate existing work.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runArchive,
}

func init() {
	home := homeDir()
	rootCmd.Flags().StringP("config", "c", defaultConfigPath(home), "config file path")
	rootCmd.Flags().StringP("database", "d", filepath.Join(home, ".archives", "booruchan.db"), "catalog database path")
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return "."
}

func defaultConfigPath(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "booruchan", "booruchan.json")
	}
	return filepath.Join(home, ".config", "booruchan", "booruchan.json")
}

func runArchive(cmd *cobra.Command, args []string) error {
	home := homeDir()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	dbPath, err := cmd.Flags().GetString("database")
	if err != nil {
		return err
	}

	explicit := cmd.Flags().Changed("config")
	if explicit {
		if _, statErr := os.Stat(configPath); statErr != nil {
			code := 2
			exitCode = &code
			return fmt.Errorf("reading config file %s: %w", configPath, statErr)
		}
	}

	cfg, err := config.Load(configPath, home)
	if err != nil {
		code := 2
		exitCode = &code
		return err
	}
	if cmd.Flags().Changed("database") {
		cfg.Database = config.ExpandHome(home, dbPath)
	}

	logrus.WithField("database", cfg.Database).Info("starting archive run")
	return dispatch.Run(context.Background(), cfg, home, nil)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode reports the process exit code Execute's error (if any) maps to.
// Call this only after Execute returns a non-nil error.
func ExitCode() int {
	if exitCode != nil {
		return *exitCode
	}
	return 1
}
