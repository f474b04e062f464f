package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, int64(50*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Contains(t, cfg.Uploads.AllowedExtensions, "pdf")
	assert.Contains(t, cfg.Uploads.AllowedExtensions, "rar")
	assert.Len(t, cfg.Uploads.AllowedExtensions, 21)
	assert.Equal(t, MailDriverLog, cfg.Mail.Driver)
	assert.Equal(t, 587, cfg.Mail.SMTPPort)
	assert.Equal(t, 15*time.Minute, cfg.Uploads.SignedURLTTL)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("UPLOADS_MAX_FILE_SIZE", 0)
	v.Set("UPLOADS_ALLOWED_EXTENSIONS", " PDF , md ,,")
	v.Set("MAIL_DRIVER", "SendGrid")
	v.Set("DASHBOARD_CACHE_TTL", "not-a-duration")
	v.Set("APP_URL", "https://portal.example.edu/")

	cfg := fromViper(v)

	assert.Equal(t, int64(50*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	assert.Equal(t, []string{"pdf", "md"}, cfg.Uploads.AllowedExtensions)
	assert.Equal(t, MailDriverSendGrid, cfg.Mail.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Dashboard.CacheTTL)
	assert.Equal(t, "https://portal.example.edu", cfg.AppURL)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}
