package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/goliatone/go-track-cache/catalog"
	"github.com/goliatone/go-track-cache/internal/auth"
	"github.com/goliatone/go-track-cache/internal/config"
	"github.com/goliatone/go-track-cache/internal/logging"
	"github.com/goliatone/go-track-cache/pkg/di"
)

var (
	// Version is set at build time.
	Version = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:           "trackcache",
		Short:         "Music catalog track API with a read-through cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	hashPasswordCmd = &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for AUTH_PASSWORD_HASH",
		Long:  "Print a bcrypt hash for AUTH_PASSWORD_HASH. Without an argument the password is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHashPassword,
	}
)

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (default $"+config.ConfigPathEnvVar+")")
	rootCmd.AddCommand(serveCmd, migrateCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	if err := container.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      container.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := catalog.OpenDB(cmd.Context(), cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := catalog.CreateSchema(cmd.Context(), db); err != nil {
		return err
	}
	logger.Info().Msg("catalog schema ready")
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd, args)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func readPassword(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(string(raw), "\r\n")
	if password == "" {
		return "", errors.New("password is empty")
	}
	return password, nil
}
