package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trunghafromvietnam/aegis-share/internal/config"
)

var cfg *config.Config

var (
	coreURL  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Loan offer and debt-collection risk checker",
	Long:  "Scores a loan screenshot or a spoken debt-collection threat against Aegis Core, alerts on RED verdicts and exports a shareable safety card.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		applyFlagOverrides(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		switch cmd.Name() {
		case "scan", "listen", "serve", "health":
			return cfg.Validate(cmd.Name())
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&coreURL, "core-url", "", "Aegis Core base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")
}

// applyFlagOverrides lets explicitly set persistent flags win over file and
// environment configuration.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("core-url") {
		c.API.BaseURL = coreURL
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
