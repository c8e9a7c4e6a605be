package server

import (
	"log/slog"
	"os"

	"github.com/aep/oairepo/config"
	"github.com/spf13/cobra"
)

var (
	configPath     string
	serverCertPath string
	serverKeyPath  string
)

var CMD = &cobra.Command{
	Use:   "server",
	Short: "start the OAI-PMH server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			slog.Error("invalid configuration", "err", err)
			os.Exit(1)
		}
		Main(cfg, serverCertPath, serverKeyPath)
	},
}

func init() {
	CMD.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	CMD.Flags().StringVar(&serverCertPath, "server-cert", "", "Path to server certificate file (enables TLS)")
	CMD.Flags().StringVar(&serverKeyPath, "server-key", "", "Path to server private key file")
}
