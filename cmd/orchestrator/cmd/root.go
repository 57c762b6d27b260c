// Package cmd implements the orchestrator CLI: a root command plus
// serve, migrate, and version subcommands, grounded on the teacher's
// cobra + viper command layout.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	appVersion string
	appCommit  string
	appDate    string
)

// exitError carries the process exit code a failure should produce,
// per the runtime's documented boot contract: 0 clean shutdown, 2
// configuration error, 3 store unavailable, 4 migration mismatch.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode extracts the intended process exit code from an error
// returned by Execute, defaulting to 1 for an error without one.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if ok := asExitError(err, &ee); ok {
		return ee.code
	}
	return 1
}

func asExitError(err error, target **exitError) bool {
	for err != nil {
		if ee, ok := err.(*exitError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "GTM idea-to-go-to-market multi-agent orchestration runtime",
	Long: `orchestrator runs a fixed sequence of specialist agents over a founder's
raw product idea, merging their outputs into one canonical scenario state
and validating it for contradictions before it's ready to export.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

// Execute runs the root command and returns an error carrying the
// process exit code the caller should use.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion injects build-time version metadata into the version
// command.
func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .orchestrator.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".orchestrator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("ORCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}
