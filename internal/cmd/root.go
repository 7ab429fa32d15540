package cmd

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/scrollstitch/internal/config"
	"github.com/Iron-Ham/scrollstitch/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "scrollstitch",
	Short: "Stitch scrolling screenshots into one tall image",
	Long: `Scrollstitch records a page while it is scrolled, one viewport capture
at a time, and joins the captures into a single tall image. Seams between
captures are refined by comparing their pixels, so small errors in the
reported scroll position do not show up as duplicated or missing rows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/scrollstitch/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	config.BindEnv()

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the command's logger. Without a log directory, entries
// go to w; quiet discards them instead so they cannot garble a full-screen
// UI.
func newLogger(cfg *config.Config, w io.Writer, quiet bool) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.Dir != "" {
		return logging.NewLogger(cfg.Logging.Dir, level, cfg.Logging.Rotation())
	}
	if quiet {
		return logging.NopLogger(), nil
	}
	return logging.NewWriterLogger(w, level), nil
}
