// Command bot polls the homework review API and reports status changes to Telegram.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"homeworkbot/internal/app"
	"homeworkbot/internal/config"
	logx "homeworkbot/pkg/logx"
)

var (
	cfgPath string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "bot",
	Short:         "Homework review status bot",
	Long:          "Polls the homework review API on a schedule and sends every status change to a Telegram chat.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML/JSON config (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading credentials")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadSecrets exits the process when a credential is missing, before any
// network activity. With no names every credential is required.
func loadSecrets(required ...string) config.Secrets {
	secrets, err := config.LoadSecrets(envFile)
	var se *config.SecretsError
	if len(required) > 0 && errors.As(err, &se) {
		err = se.Only(required...)
	}
	if err != nil {
		log := logx.NewConsole("info")
		if errors.Is(err, config.ErrMissingSecret) {
			log.Critical("required environment variables are missing", logx.Err(err))
		} else {
			log.Critical("cannot read credentials", logx.Err(err))
		}
		os.Exit(1)
	}
	return secrets
}

func runBot(cmd *cobra.Command, _ []string) error {
	secrets := loadSecrets()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, app.Options{ConfigPath: cfgPath, Secrets: secrets})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}
	runErr := a.Err()
	_ = a.Stop(context.Background(), reason)
	if reason == app.StopFatalError {
		return runErr
	}
	return nil
}
