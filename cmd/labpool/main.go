package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/labpool/internal/config"
	"github.com/jbweber/homelab/labpool/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "labpool",
	Short: "Team formation and VM quota service for course labs",
	Long: `labpool lets students of a course form teams and run virtual machines
inside the resource envelope (vCPU, memory, disk, instance counts) granted
to each team.

Configuration is read from LABPOOL_* environment variables and an optional
.env file in the working directory.`,
	SilenceUsage: true,
}

var (
	cfg *config.Config
	log *logrus.Logger

	dbPathFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "database path (overrides LABPOOL_DB_PATH)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if dbPathFlag != "" {
			cfg.DBPath = dbPathFlag
		}
		log, err = logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return err
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
