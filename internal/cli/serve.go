package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shortsget/shortsget/internal/config"
	"github.com/shortsget/shortsget/internal/provider"
	"github.com/shortsget/shortsget/internal/resolver"
	"github.com/shortsget/shortsget/internal/server"
	"github.com/shortsget/shortsget/internal/validate"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API consumed by the web frontend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg := config.LoadOrDefault()
		if flagListen != "" {
			cfg.ListenAddr = flagListen
		}

		chain := provider.Chain(cfg)
		if len(chain) == 0 {
			return fmt.Errorf("no providers available; configure an API key or install yt-dlp")
		}

		res := resolver.New(chain, validate.New(cfg.ProbeTimeout)).
			WithTimeout(cfg.ProviderTimeout)

		recorder := openRecorder(cfg)
		defer recorder.Close()

		logrus.WithField("providers", res.Providers()).Info("provider chain ready")

		return server.New(res, recorder).Run(cfg.ListenAddr)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
