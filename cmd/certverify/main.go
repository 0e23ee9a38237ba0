package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"certverify/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	root := &cobra.Command{
		Use:          "certverify",
		Short:        "Verify NPTEL course certificates against the official copy",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.ConfigureLogging(loaded.LogLevel, loaded.LogFormat); err != nil {
				return err
			}
			cfg = loaded
			logrus.WithField("command", cmd.Name()).Debug("configuration loaded")
			return nil
		},
	}
	root.AddCommand(newServeCmd(&cfg), newVerifyCmd(&cfg), newTokenCmd(&cfg))
	return root
}
