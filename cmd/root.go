package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/unitscope/unitscope/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `             _ _
 _   _ _ __ (_) |_ ___  ___ ___  _ __   ___
| | | | '_ \| | __/ __|/ __/ _ \| '_ \ / _ \
| |_| | | | | | |_\__ \ (_| (_) | |_) |  __/
 \__,_|_| |_|_|\__|___/\___\___/| .__/ \___|
                                |_|
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "unitscope",
	Short: "A daily harvester for the meetinghouse locator API.",
	Long: LOGO + `unitscope sweeps the locator API with a configurable coverage grid,
keeps two days of full snapshots per collection, and writes the daily
added/removed files plus a long-term run journal.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.unitscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().String("data-dir", "data", "Directory holding snapshots, daily deltas and the journal")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")

	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("loglevel", rootCmd.PersistentFlags().Lookup("loglevel"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".unitscope")
		viper.SetConfigType("yaml")
	}

	// UNITSCOPE_DATA_DIR, UNITSCOPE_CONCURRENCY, ... override config scalars.
	viper.SetEnvPrefix("unitscope")
	viper.AutomaticEnv()

	// A missing config file is fine here. Commands that need the region
	// tables fail later with a ConfigurationError; changes and stats only
	// need the data dir.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}

	viper.SetDefault("data_dir", "data")
	viper.SetDefault("concurrency", 20)
	viper.SetDefault("endpoint", "")
	viper.SetDefault("referer", "")

	// Init log library
	utils.SetLogLevel(viper.GetString("loglevel"))
}
