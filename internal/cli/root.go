package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes returned by Execute.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitBadConfig = 2
)

// errRunFailed marks a run that finished with status failed.
var errRunFailed = errors.New("run failed")

// app is the state shared by every command once flags are resolved.
type app struct {
	configPath string
	output     string
	logLevel   string

	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return execute(os.Args[1:], os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitOK
}

// exitCode maps an error to ExitBadConfig for invalid input and ExitFailure
// for everything else.
func exitCode(err error) int {
	var (
		cfgErr   *domain.ConfigurationError
		rangeErr *domain.InvalidRangeError
		paramErr *domain.InvalidParameterError
	)
	if errors.As(err, &cfgErr) || errors.As(err, &rangeErr) || errors.As(err, &paramErr) {
		return ExitBadConfig
	}
	return ExitFailure
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:           "transitdw",
		Short:         "Transit ridership data warehouse",
		Long:          "Generate, clean and load transit ridership, delay and performance data into a star schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(a.output); err != nil {
				return err
			}
			a.setupLogger(cmd)

			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newGenerateCmd(a))
	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newExportCmd(a))
	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newSummaryCmd(a))
	rootCmd.AddCommand(newScheduleCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	return rootCmd
}

// setupLogger installs the default logger. Locally logs go to stderr so
// stdout carries only command output.
func (a *app) setupLogger(cmd *cobra.Command) {
	opts := logger.OptionsFromEnv()
	opts.Service = "transitdw-cli"
	if cmd.Flags().Changed("log-level") {
		opts.Level = a.logLevel
	}
	if opts.Environment == "local" {
		opts.Output = a.stderr
	}
	logger.SetDefaultLogger(logger.New(opts))
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		// version needs no config
		PersistentPreRunE: func(*cobra.Command, []string) error { return validateOutputFormat(a.output) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.output == "json" {
				return printJSON(a.stdout, map[string]string{"version": version, "commit": commit})
			}
			_, _ = fmt.Fprintf(a.stdout, "transitdw version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
