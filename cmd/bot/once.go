package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"homeworkbot/internal/app"
	"homeworkbot/internal/config"
	"homeworkbot/internal/homework"
	"homeworkbot/internal/poller"
	"homeworkbot/internal/practicum"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single poll cycle and print the notification",
	Long:  "Fetches one window from the review API and prints the text that would be sent. Nothing is sent to Telegram.",
	RunE:  runOnce,
}

var onceSince int64

func init() {
	onceCmd.Flags().Int64Var(&onceSince, "since", 0, "window start as epoch seconds (default: now minus practicum.lookback)")
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	// Nothing is sent, so the Telegram credentials are optional here.
	secrets := loadSecrets(config.EnvPracticumToken)
	cfg, err := config.NewConfigManager(cfgPath).Load(cmd.Context())
	if err != nil {
		return err
	}
	pcfg, err := app.MapPracticumConfig(cfg, secrets)
	if err != nil {
		return err
	}
	client, err := practicum.NewClient(pcfg)
	if err != nil {
		return err
	}
	since := onceSince
	if since == 0 {
		lookback, err := config.ParseDurationField("practicum.lookback", cfg.Practicum.Lookback)
		if err != nil {
			return err
		}
		since = time.Now().Add(-lookback).Unix()
	}

	res, err := homework.NewCycle(client, homework.DefaultCatalog()).Run(cmd.Context(), since)
	out := cmd.OutOrStdout()
	if err != nil {
		fmt.Fprintln(out, poller.FailureText(err))
		fmt.Fprintf(out, "kind=%s watermark=%d (unchanged)\n", homework.KindOf(err), since)
		return nil
	}
	fmt.Fprintln(out, res.Text)
	fmt.Fprintf(out, "records=%d watermark=%d -> %d\n", res.Records, since, res.Watermark)
	return nil
}
