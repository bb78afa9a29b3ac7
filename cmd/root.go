package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/sw33tLie/ghrenew/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	       _
	  __ _| |__  _ __ ___ _ __   _____      __
	 / _' | '_ \| '__/ _ \ '_ \ / _ \ \ /\ / /
	| (_| | | | | | |  __/ | | |  __/\ V  V /
	 \__, |_| |_|_|  \___|_| |_|\___| \_/\_/
	 |___/
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ghrenew",
	Short: "Keeps a free GreatHost server renewed.",
	Long: LOGO + `ghrenew logs into the GreatHost panel, renews your free server when the
cooldown allows it, waits for the panel to confirm the new expiry and reports
the outcome to Telegram and a Markdown status file.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ghrenew.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "Proxy for panel traffic (Example: socks5://127.0.0.1:1080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("target", "", "Target server name (overrides target.name)")
	rootCmd.PersistentFlags().String("target-id", "", "Target server id (overrides target.id)")
	rootCmd.PersistentFlags().String("mode", "", "Transport: http or browser (overrides transport.mode)")

	viper.BindPFlag("proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("target.name", rootCmd.PersistentFlags().Lookup("target"))
	viper.BindPFlag("target.id", rootCmd.PersistentFlags().Lookup("target-id"))
	viper.BindPFlag("transport.mode", rootCmd.PersistentFlags().Lookup("mode"))
}

// envBindings maps config keys onto the variable names CI setups already use.
var envBindings = map[string]string{
	"greathost.email":    "GREATHOST_EMAIL",
	"greathost.password": "GREATHOST_PASSWORD",
	"telegram.token":     "TELEGRAM_BOT_TOKEN",
	"telegram.chatid":    "TELEGRAM_CHAT_ID",
	"proxy":              "PROXY_URL",
	"target.name":        "TARGET_NAME",
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".ghrenew")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.ghrenew.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		} else if cfgFile != "" {
			fmt.Printf("Error reading config file %s: %s\n", cfgFile, err)
			os.Exit(1)
		}
	}

	// Env is wired after the config file is written so secrets never land in it.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func setDefaults() {
	viper.SetDefault("greathost.email", "")
	viper.SetDefault("greathost.password", "")
	viper.SetDefault("greathost.baseurl", "https://greathost.es")
	viper.SetDefault("target.id", "")
	viper.SetDefault("target.name", "")
	viper.SetDefault("proxy", "")

	viper.SetDefault("renewal.cooldown", "30m")
	viper.SetDefault("renewal.ceiling_hours", 120)
	viper.SetDefault("renewal.near_ceiling_hours", 108)
	viper.SetDefault("renewal.poll_attempts", 5)
	viper.SetDefault("renewal.poll_interval", "3s")
	viper.SetDefault("renewal.fallback_window", 20)
	viper.SetDefault("renewal.inspect_page", true)

	viper.SetDefault("transport.mode", "http")
	viper.SetDefault("transport.timeout", "30s")
	viper.SetDefault("transport.headless", true)
	viper.SetDefault("transport.chrome_bin", "")

	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.chatid", "")
	viper.SetDefault("report.file", "README.md")
	viper.SetDefault("report.timezone", "UTC")
	viper.SetDefault("db.path", "")
	viper.SetDefault("lock.dir", "")
}
