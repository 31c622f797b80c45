// Package cli implements the ferry command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/ferry"
	"github.com/meigma/ferry/cmd/ferry/cli/config"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	cfgFile string
	verbose bool
)

// Loaded in PersistentPreRunE.
var (
	cfg     *config.Config
	logger  = slog.New(slog.DiscardHandler)
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "ferry",
	Short: "Upload files to a file hosting service",
	Long: `Ferry uploads local files to a file hosting service.

Files are uploaded concurrently by a fixed number of workers, with live
progress for every file. Interrupting ferry cancels uploads in flight.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/ferry/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "Write JSON logs to this file instead of stderr")
	//nolint:errcheck // flag exists
	viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	rootCmd.Version = version
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
	}
	return err
}

// setup reads the config file and environment, then builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	if err := readConfig(); err != nil {
		return err
	}

	// config subcommands must work with a broken file so it can be fixed.
	if isConfigCommand(cmd) {
		return nil
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded

	return setupLogger(cfg.Log.File)
}

func teardown(_ *cobra.Command, _ []string) error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

func readConfig() error {
	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("FERRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	path := cfgFile
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(p); statErr != nil {
			// No config file is fine; defaults and env apply.
			return nil
		}
		path = p
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd {
			return true
		}
	}
	return false
}

func setupLogger(path string) error {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		return nil
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// newClient creates a ferry client with configured options.
func newClient() (*ferry.Client, error) {
	opts := []ferry.ClientOption{
		ferry.WithCredentials(cfg.Login.ID, cfg.Login.Key),
		ferry.WithChunkSize(cfg.ChunkSize),
		ferry.WithTimeout(cfg.API.Timeout),
		ferry.WithUserAgent("ferry/" + version),
		ferry.WithLogger(logger),
	}
	if cfg.API.URL != "" {
		opts = append(opts, ferry.WithBaseURL(cfg.API.URL))
	}
	return ferry.NewClient(opts...)
}

// signalContext returns a context that is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// errUploadsIncomplete is returned when at least one file of a batch was
// not uploaded. Per-file errors are already printed.
var errUploadsIncomplete = errors.New("some uploads did not complete")

// formatError converts ferry errors to user-friendly messages.
func formatError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ferry.ErrMissingCredentials):
		return "Error: missing credentials (set login.id and login.key, or FERRY_LOGIN_ID and FERRY_LOGIN_KEY)"
	case errors.Is(err, ferry.ErrPermissionDenied):
		return "Error: permission denied (check your login id and key)"
	case errors.Is(err, ferry.ErrBandwidthExceeded):
		return fmt.Sprintf("Error: bandwidth limit exceeded: %v", err)
	case errors.Is(err, ferry.ErrUnavailableForLegalReasons):
		return fmt.Sprintf("Error: unavailable for legal reasons: %v", err)
	case errors.Is(err, ferry.ErrNotFound):
		return fmt.Sprintf("Error: not found: %v", err)
	case errors.Is(err, ferry.ErrBadRequest):
		return fmt.Sprintf("Error: request rejected: %v", err)
	case errors.Is(err, ferry.ErrServer):
		return fmt.Sprintf("Error: service unavailable: %v", err)
	case errors.Is(err, ferry.ErrUnexpectedResponse):
		return fmt.Sprintf("Error: unexpected response from service: %v", err)
	case errors.Is(err, ferry.ErrCancelled), errors.Is(err, context.Canceled):
		return "Error: upload canceled"
	case errors.Is(err, os.ErrNotExist):
		return fmt.Sprintf("Error: file not found: %v", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
