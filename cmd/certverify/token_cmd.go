package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"certverify/internal/config"
	"certverify/internal/middleware"
)

func newTokenCmd(cfg *config.Config) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token --subject <name>",
		Short: "Issue an operator bearer token for share links and exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tok, err := middleware.IssueToken([]byte(cfg.AdminSecret), subject, ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
