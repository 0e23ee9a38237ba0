package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"certverify/internal/config"
	"certverify/internal/documents"
	"certverify/internal/fetch"
	googlevision "certverify/internal/google-vision"
	"certverify/internal/llm"
	"certverify/internal/verify"
)

// app holds the long-lived collaborators of the verification engine.
type app struct {
	verifier *verify.Verifier
	closers  []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}
	opts := []verify.Option{verify.WithHasher(documents.SHA256Hasher{})}

	var ocr documents.OCR
	if cfg.OCREnabled {
		vc, err := googlevision.New(ctx, cfg.VisionCredentials)
		if err != nil {
			logrus.WithError(err).Warn("OCR disabled, only text layers can be read")
		} else {
			ocr = vc
			a.closers = append(a.closers, vc.Close)
		}
	}

	if cfg.GeminiAPIKey != "" {
		p, err := llm.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logrus.WithError(err).Warn("field assist disabled")
		} else {
			opts = append(opts, verify.WithFieldAssist(p))
			a.closers = append(a.closers, p.Close)
		}
	}

	opts = append(opts, verify.WithResolver(fetch.NewResolver(fetch.Config{
		DownloadDir:  cfg.DownloadDir,
		Timeout:      cfg.FetchTimeout,
		CacheTTL:     cfg.LinkCacheTTL,
		AllowedHosts: cfg.AllowedHosts,
	}, a.linkCache(ctx, cfg))))

	v, err := verify.NewVerifier(documents.NewRouter(ocr), cfg.Policy, opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.verifier = v
	return a, nil
}

// linkCache prefers redis and falls back to process memory.
func (a *app) linkCache(ctx context.Context, cfg config.Config) fetch.LinkCache {
	if cfg.RedisAddr == "" {
		return fetch.NewMemoryCache()
	}
	rc, err := fetch.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err == nil {
		err = rc.Ping(ctx)
		if err != nil {
			_ = rc.Close()
		}
	}
	if err != nil {
		logrus.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, caching PDF links in memory")
		return fetch.NewMemoryCache()
	}
	a.closers = append(a.closers, rc.Close)
	return rc
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
