package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hudson/internal/ratelimit/models"
	dErrors "hudson/pkg/domain-errors"
)

func TestDefaultConfigRegistry(t *testing.T) {
	cfg := DefaultConfig()

	expected := map[models.LimitType]models.Limit{
		models.LimitDefault:        {MaxRequests: 100, Window: 15 * time.Minute},
		models.LimitAPI:            {MaxRequests: 60, Window: time.Minute},
		models.LimitContactForm:    {MaxRequests: 3, Window: time.Minute},
		models.LimitContactFormAPI: {MaxRequests: 5, Window: 15 * time.Minute},
		models.LimitNewsletter:     {MaxRequests: 3, Window: time.Hour},
		models.LimitReadOnlyAPI:    {MaxRequests: 200, Window: time.Minute},
	}
	for lt, want := range expected {
		got, ok := cfg.Get(lt)
		require.True(t, ok, lt)
		assert.Equal(t, want, got, lt)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	cfg := DefaultConfig()

	lt, limit := cfg.Resolve("bogus")
	assert.Equal(t, models.LimitDefault, lt)
	assert.Equal(t, 100, limit.MaxRequests)

	lt, limit = cfg.Resolve(models.LimitNewsletter)
	assert.Equal(t, models.LimitNewsletter, lt)
	assert.Equal(t, time.Hour, limit.Window)
}

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := DefaultConfig()
	changed := base.With(models.LimitAPI, models.Limit{MaxRequests: 1, Window: time.Second})

	orig, _ := base.Get(models.LimitAPI)
	assert.Equal(t, 60, orig.MaxRequests)
	got, _ := changed.Get(models.LimitAPI)
	assert.Equal(t, 1, got.MaxRequests)
}

func TestLoadYAMLOverridesPartially(t *testing.T) {
	data := []byte(`
limits:
  newsletter:
    max_requests: 5
  contactFormApi:
    window: 30m
`)
	cfg, err := Load(data, yaml.Parser())
	require.NoError(t, err)

	newsletter, _ := cfg.Get(models.LimitNewsletter)
	assert.Equal(t, models.Limit{MaxRequests: 5, Window: time.Hour}, newsletter)

	contact, _ := cfg.Get(models.LimitContactFormAPI)
	assert.Equal(t, models.Limit{MaxRequests: 5, Window: 30 * time.Minute}, contact)
}

func TestLoadRejectsInvalidOverrides(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown type", `{"limits":{"signup":{"max_requests":3}}}`},
		{"zero max", `{"limits":{"api":{"max_requests":0}}}`},
		{"negative window", `{"limits":{"api":{"window":"-1m"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.data), json.Parser())
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), err.Error())
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadFile("")
		require.NoError(t, err)
		l, _ := cfg.Get(models.LimitAPI)
		assert.Equal(t, 60, l.MaxRequests)
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "limits.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"limits":{"readOnlyApi":{"max_requests":500,"window":"2m"}}}`), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		l, _ := cfg.Get(models.LimitReadOnlyAPI)
		assert.Equal(t, models.Limit{MaxRequests: 500, Window: 2 * time.Minute}, l)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "limits.toml")
		require.NoError(t, os.WriteFile(path, []byte(`x = 1`), 0o600))

		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
