package main

import (
	"fmt"
	"log/slog"
	"os"

	cl "github.com/aep/oairepo/client"
	kv "github.com/aep/oairepo/kv/cmd"
	sr "github.com/aep/oairepo/server"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "oairepo",
	Short: "OAI-PMH repository provider",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("log-level") {
			if env, ok := os.LookupEnv("OAIPMH_LOG_LEVEL"); ok {
				logLevel = env
			}
		}

		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(sr.CMD)
	rootCmd.AddCommand(kv.CMD)
	rootCmd.AddCommand(cl.CMD)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
