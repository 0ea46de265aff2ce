package config_test

import (
	"testing"
	"time"

	"vidscore/config"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		t.Setenv("VIDSCORE_PORT", "")
		t.Setenv("VIDSCORE_FF_TIMEOUT", "")
		t.Setenv("VIDSCORE_MAX_UPLOAD_SIZE", "")
		t.Setenv("VIDSCORE_GEMINI_INLINE_LIMIT", "")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "ffmpeg", cfg.FFBin)
		assert.Equal(t, "ffprobe", cfg.FFProbeBin)
		assert.Equal(t, 10*time.Minute, cfg.FFTimeout)
		assert.Equal(t, int64(100*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, int64(20*1024*1024), cfg.GeminiInlineLimit)
		assert.Equal(t, 360, cfg.DownsampleHeight)
		assert.Equal(t, 2*time.Second, cfg.GeminiPollInterval)
		assert.Equal(t, 5*time.Minute, cfg.GeminiPollTimeout)
		assert.Equal(t, time.Hour, cfg.SignTTL)
		assert.Equal(t, false, cfg.AuthEnable)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		t.Setenv("VIDSCORE_PORT", "9999")
		t.Setenv("VIDSCORE_MAX_UPLOAD_SIZE", "50MB")
		t.Setenv("VIDSCORE_WEBHOOK_URL", "http://automation.local/hook")
		t.Setenv("VIDSCORE_WEBHOOK_TIMEOUT", "30s")
		t.Setenv("VIDSCORE_AUTH_ENABLE", "true")
		t.Setenv("VIDSCORE_AUTH_KEY", "newsecret")

		cfg, err := config.Load()
		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadSize)
		assert.Equal(t, "http://automation.local/hook", cfg.WebhookURL)
		assert.Equal(t, 30*time.Second, cfg.WebhookTimeout)
		assert.Equal(t, true, cfg.AuthEnable)
		assert.Equal(t, "newsecret", cfg.AuthKey)
	})
}
