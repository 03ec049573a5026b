package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"hudson/internal/ratelimit/models"
	dErrors "hudson/pkg/domain-errors"
)

// Config is the registry of named limits. It is read-only after
// construction and safe to share.
type Config struct {
	limits map[models.LimitType]models.Limit
}

// DefaultConfig returns the registry used by the marketing site.
func DefaultConfig() *Config {
	return &Config{
		limits: map[models.LimitType]models.Limit{
			models.LimitDefault:        {MaxRequests: 100, Window: 15 * time.Minute},
			models.LimitAPI:            {MaxRequests: 60, Window: time.Minute},
			models.LimitContactForm:    {MaxRequests: 3, Window: time.Minute},
			models.LimitContactFormAPI: {MaxRequests: 5, Window: 15 * time.Minute},
			models.LimitNewsletter:     {MaxRequests: 3, Window: time.Hour},
			models.LimitReadOnlyAPI:    {MaxRequests: 200, Window: time.Minute},
		},
	}
}

// Get returns the limit registered under t.
func (c *Config) Get(t models.LimitType) (models.Limit, bool) {
	l, ok := c.limits[t]
	return l, ok
}

// Resolve returns the limit for t, falling back to the default limit for a
// name that is not registered. It never fails.
func (c *Config) Resolve(t models.LimitType) (models.LimitType, models.Limit) {
	if l, ok := c.limits[t]; ok {
		return t, l
	}
	return models.LimitDefault, c.limits[models.LimitDefault]
}

// With returns a copy of c with t set to l. Used by tests and overrides.
func (c *Config) With(t models.LimitType, l models.Limit) *Config {
	limits := maps.Clone(c.limits)
	limits[t] = l
	return &Config{limits: limits}
}

// limitOverride mirrors one entry of the overrides file.
type limitOverride struct {
	MaxRequests int           `koanf:"max_requests"`
	Window      time.Duration `koanf:"window"`
}

// LoadFile reads a YAML or JSON file of the form
//
//	limits:
//	  newsletter:
//	    max_requests: 5
//	    window: 30m
//
// and merges it onto DefaultConfig. Fields left out keep their default.
// An empty path returns the defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limits file: %w", err)
	}

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "rate limits file must be .yaml, .yml or .json")
	}
	return Load(data, parser)
}

// Load merges overrides parsed from data onto DefaultConfig.
func Load(data []byte, parser koanf.Parser) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("parse rate limits: %w", err)
	}

	overrides := map[string]limitOverride{}
	if err := k.UnmarshalWithConf("limits", &overrides, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode rate limits: %w", err)
	}

	cfg := DefaultConfig()
	for name, o := range overrides {
		t := models.LimitType(name)
		if !t.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "rate limits: unknown limit type "+name)
		}
		merged := cfg.limits[t]
		if k.Exists("limits." + name + ".max_requests") {
			merged.MaxRequests = o.MaxRequests
		}
		if k.Exists("limits." + name + ".window") {
			merged.Window = o.Window
		}
		if err := merged.Validate(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "rate limits: "+name+": "+err.Error())
		}
		cfg.limits[t] = merged
	}
	return cfg, nil
}
