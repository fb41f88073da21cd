package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solvik/mqttc/internal/logging"
)

var cfgFile string

// Broker is the host:port of the MQTT broker every subcommand connects to.
var Broker string

// ClientID overrides the generated client identifier when non-empty.
var ClientID string

// LogLevel is the logrus level name applied during PersistentPreRun.
var LogLevel string

// LogJSON switches the default logger to JSON output during PersistentPreRun.
var LogJSON bool

// RootCmd is the mqttc CLI's entry point: pub/sub/report are registered on
// it from their own files' init functions.
var RootCmd = &cobra.Command{
	Use:   "mqttc",
	Short: "mqttc is a synchronous MQTT 3.1/3.1.1 client",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevelFromName(LogLevel)
		logging.SetJSONFormat(LogJSON)
	},
}

// Execute runs the root command; main's sole responsibility is calling this
// and translating a non-nil error into an exit code.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mqttc.yaml)")
	flags.StringVarP(&Broker, "broker", "b", "localhost:1883", "MQTT broker host:port")
	flags.StringVarP(&ClientID, "client-id", "c", "", "MQTT client identifier (default: generated)")
	flags.StringVar(&LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&LogJSON, "log-json", false, "emit logs as JSON instead of text")

	_ = viper.BindPFlag("broker", flags.Lookup("broker"))
	_ = viper.BindPFlag("client-id", flags.Lookup("client-id"))
	_ = viper.BindPFlag("log-level", flags.Lookup("log-level"))
}

// initConfig resolves a config file from --config or $HOME/.mqttc.yaml and
// merges any values found over flag defaults, the same precedence order the
// ecosystem's cobra/viper root commands use.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".mqttc")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("loaded config file")
	}

	if viper.IsSet("broker") {
		Broker = viper.GetString("broker")
	}
	if viper.IsSet("client-id") {
		ClientID = viper.GetString("client-id")
	}
	if viper.IsSet("log-level") {
		LogLevel = viper.GetString("log-level")
	}
}
