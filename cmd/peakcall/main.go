package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "peakcall",
	Short: "peakcall - MACS2 peak calling for ChIP-seq pipelines",
	Long: `peakcall runs MACS2 callpeak on an aligned BAM file (with an optional
control BAM) and delivers the narrowPeak, summits, broadPeak and gappedPeak
outputs to fixed destinations, together with a metadata manifest.

Settings are read from flags, PEAKCALL_* environment variables and an
optional config file (--config, or peakcall.yaml in . or $HOME/.config).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd.Root().PersistentFlags(), "verbose"); err != nil {
			return err
		}
		return initConfig()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: peakcall.yaml in . or $HOME/.config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Log debug output")

	rootCmd.AddCommand(callpeakCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(versionCmd)
}

// bindFlags binds the named flags to viper keys of the same name
func bindFlags(flags *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// initConfig wires viper to the config file and environment
func initConfig() error {
	viper.SetDefault("macs2", "macs2")
	viper.SetDefault("timeout", "0s")
	viper.SetDefault("reconcile-on-failure", true)

	viper.SetEnvPrefix("peakcall")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
		return nil
	}

	viper.SetConfigName("peakcall")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("peakcall-go version 0.1.0")
		fmt.Println("MACS2 callpeak wrapper")
	},
}
