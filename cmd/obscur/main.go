// Command obscur packs and unpacks ObscurCore encrypted archives.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile   string
	logFormat string
	debug     bool

	logger *zap.SugaredLogger
)

// rootCmd is the base CLI command.
var rootCmd = &cobra.Command{
	Use:   "obscur",
	Short: "Pack and unpack encrypted archives",
	Long: `obscur reads and writes ObscurCore packages: single-file encrypted,
authenticated archives whose manifest and payload layout are hidden from
anyone without the key.

Packages can be keyed symmetrically (a shared pre-key) or with UM1
elliptic-curve key agreement between a sender and recipient identity.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("config") && cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		}
		return initLogger()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// initLogger builds the zap logger the subcommands share.
func initLogger() error {
	var zapConfig zap.Config
	if logFormat == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.OutputPaths = []string{"stderr"}
	if debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	logger = l.Sugar()
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.obscur.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "human", "log format: json or human")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".obscur")
		viper.SetConfigType("yaml")
		viper.ReadInConfig()
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
