package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certverify/internal/verify"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_DRIVER", "DB_URL", "QR_ALLOWED_HOSTS", "RETAIN_FILES", "OCR_ENABLED", "LINK_CACHE_TTL", "MAX_UPLOAD_MB", "FRONTEND_BASE_URL"} {
		t.Setenv(k, "")
	}
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "certverify.db", cfg.DBURL)
	assert.True(t, cfg.OCREnabled)
	assert.Equal(t, 24*time.Hour, cfg.LinkCacheTTL)
	assert.Equal(t, int64(10), cfg.MaxUploadMB)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendBaseURL)
	assert.Equal(t, []string{"nptel.ac.in"}, cfg.AllowedHosts)
	assert.False(t, cfg.RetainFiles)
	assert.Equal(t, verify.DefaultPolicy(), cfg.Policy)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_URL", "postgres://cv:cv@localhost:5432/cv")
	t.Setenv("OCR_ENABLED", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FRONTEND_BASE_URL", "https://verify.example.org/")
	t.Setenv("QR_ALLOWED_HOSTS", "nptel.ac.in, archive.nptel.ac.in ,")
	t.Setenv("RETAIN_FILES", "true")
	t.Setenv("ADMIN_JWT_SECRET", "s3cret")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.False(t, cfg.OCREnabled)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "https://verify.example.org", cfg.FrontendBaseURL)
	assert.Equal(t, []string{"nptel.ac.in", "archive.nptel.ac.in"}, cfg.AllowedHosts)
	assert.True(t, cfg.RetainFiles)
	assert.Equal(t, "s3cret", cfg.AdminSecret)

	t.Setenv("QR_ALLOWED_HOSTS", "*")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Nil(t, cfg.AllowedHosts)
}

func TestFromEnvPostgresNeedsURL(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_URL", "")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "DB_URL")
}

func TestFromEnvInvalid(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	t.Setenv("MAX_UPLOAD_MB", "-1")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
	assert.Contains(t, err.Error(), "MAX_UPLOAD_MB")
}

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPolicy(t *testing.T) {
	path := writePolicy(t, `
weights:
  certificate_id: 0.4
  name: 0.3
  course: 0.2
  text: 0.1
thresholds:
  verified: 0.85
  suspicious: 0.5
absent_policy: renormalize
institute_fallback: NPTEL
`)
	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, p.Weights.CertificateID, 1e-12)
	assert.InDelta(t, 0.85, p.Thresholds.Verified, 1e-12)
	assert.Equal(t, verify.AbsentRenormalize, p.Absent)
	assert.Equal(t, "NPTEL", p.InstituteFallback)
}

func TestLoadPolicyKeepsDefaultsForMissingKeys(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, "absent_policy: renormalize\n"))
	require.NoError(t, err)
	assert.Equal(t, verify.DefaultWeights(), p.Weights)
	assert.Equal(t, verify.DefaultThresholds(), p.Thresholds)
	assert.Equal(t, verify.AbsentRenormalize, p.Absent)
}

func TestLoadPolicyRejectsBadWeights(t *testing.T) {
	path := writePolicy(t, `
weights:
  certificate_id: 0.5
  name: 0.5
  course: 0.5
  text: 0.5
`)
	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1")
}

func TestConfigureLogging(t *testing.T) {
	prev := logrus.GetLevel()
	t.Cleanup(func() {
		logrus.SetLevel(prev)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})

	require.NoError(t, ConfigureLogging("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.Error(t, ConfigureLogging("loud", "text"))
	assert.Error(t, ConfigureLogging("info", "xml"))
}
