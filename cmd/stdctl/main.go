// stdctl manages the local standards data: download, process, index, search
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nainya/standardstore/internal/app"
	"github.com/nainya/standardstore/internal/config"
)

var (
	cfgPath  string
	logLevel string
	state    *app.App
)

var rootCmd = &cobra.Command{
	Use:   "stdctl",
	Short: "Manage educational standards data and the search index",
	Long: `stdctl downloads standard sets from the Common Standards Project API,
flattens them into search-ready records, uploads them to the local vector
index and queries that index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		state = app.New(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", os.Getenv("STANDARDSTORE_CONFIG"), "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
