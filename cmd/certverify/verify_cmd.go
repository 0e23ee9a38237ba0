package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"certverify/internal/config"
	"certverify/internal/db"
	"certverify/internal/models"
	"certverify/internal/qr"
	"certverify/internal/report"
	"certverify/internal/verify"
)

type verifyFlags struct {
	user     string
	official string
	qrURL    string
	save     bool
}

func newVerifyCmd(cfg *config.Config) *cobra.Command {
	var f verifyFlags
	cmd := &cobra.Command{
		Use:   "verify --user <file> (--official <file> | --qr <url>)",
		Short: "Verify one certificate file and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd, *cfg, f)
		},
	}
	cmd.Flags().StringVar(&f.user, "user", "", "certificate file submitted by the user")
	cmd.Flags().StringVar(&f.official, "official", "", "official certificate file")
	cmd.Flags().StringVar(&f.qrURL, "qr", "", "QR payload URL of the official certificate")
	cmd.Flags().BoolVar(&f.save, "save", false, "store the report record in the database")
	_ = cmd.MarkFlagRequired("user")
	cmd.MarkFlagsMutuallyExclusive("official", "qr")
	return cmd
}

func runVerify(cmd *cobra.Command, cfg config.Config, f verifyFlags) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	official := f.official
	if official == "" {
		payload := f.qrURL
		if payload == "" {
			if payload, err = qr.DecodeFile(f.user); err != nil {
				return fmt.Errorf("%w: %v", verify.ErrOfficialUnavailable, err)
			}
		}
		if official, err = a.verifier.ResolveOfficial(ctx, payload); err != nil {
			return errors.Join(verify.ErrOfficialUnavailable, err)
		}
		if !cfg.RetainFiles {
			defer os.Remove(official)
		}
	}

	res, err := a.verifier.Verify(ctx, f.user, official)
	if err != nil {
		return err
	}
	if f.save {
		if err := saveReport(cmd, cfg, res); err != nil {
			logrus.WithError(err).Warn("report not saved")
		}
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func saveReport(cmd *cobra.Command, cfg config.Config, res models.VerificationResult) error {
	gdb, err := db.Open(cfg.DBDriver, cfg.DBURL, true)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()
	_, saved, err := report.NewStore(gdb).Save(cmd.Context(), res)
	if err != nil {
		return err
	}
	logrus.WithField("saved", saved).Debug("report record")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
