package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rohmanhakim/parkfetch/pkg/fileutil"
	"github.com/rohmanhakim/parkfetch/pkg/hashutil"
	"gopkg.in/yaml.v3"
)

// configDTO is the on-disk shape. Durations are Go duration strings
// ("10s", "250ms"). Zero values leave the default in place.
type configDTO struct {
	BaseURL                string  `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	PlacesEndpoint         string  `json:"placesEndpoint,omitempty" yaml:"placesEndpoint,omitempty"`
	APIKey                 string  `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	SearchRadius           int     `json:"searchRadius,omitempty" yaml:"searchRadius,omitempty"`
	MaxMatches             int     `json:"maxMatches,omitempty" yaml:"maxMatches,omitempty"`
	CacheFile              string  `json:"cacheFile,omitempty" yaml:"cacheFile,omitempty"`
	Timeout                string  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UserAgent              string  `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Concurrency            int     `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	MaxAttempt             int     `json:"maxAttempt,omitempty" yaml:"maxAttempt,omitempty"`
	Jitter                 string  `json:"jitter,omitempty" yaml:"jitter,omitempty"`
	RandomSeed             int64   `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	BackoffInitialDuration string  `json:"backoffInitialDuration,omitempty" yaml:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64 `json:"backoffMultiplier,omitempty" yaml:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     string  `json:"backoffMaxDuration,omitempty" yaml:"backoffMaxDuration,omitempty"`
	HashAlgo               string  `json:"hashAlgo,omitempty" yaml:"hashAlgo,omitempty"`
	LogLevel               string  `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := WithDefault()
	if err := applyDTO(cfg, dto); err != nil {
		return Config{}, err
	}
	return cfg.Build()
}

func applyDTO(cfg *Config, dto configDTO) error {
	if dto.BaseURL != "" {
		u, err := url.Parse(dto.BaseURL)
		if err != nil {
			return fmt.Errorf("%w: baseUrl: %s", ErrInvalidConfig, err.Error())
		}
		cfg.baseURL = *u
	}
	if dto.PlacesEndpoint != "" {
		u, err := url.Parse(dto.PlacesEndpoint)
		if err != nil {
			return fmt.Errorf("%w: placesEndpoint: %s", ErrInvalidConfig, err.Error())
		}
		cfg.placesEndpoint = *u
	}
	if dto.APIKey != "" {
		cfg.apiKey = dto.APIKey
	}
	if dto.SearchRadius != 0 {
		cfg.searchRadius = dto.SearchRadius
	}
	if dto.MaxMatches != 0 {
		cfg.maxMatches = dto.MaxMatches
	}
	if dto.CacheFile != "" {
		cfg.cacheFile = dto.CacheFile
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.Concurrency != 0 {
		cfg.concurrency = dto.Concurrency
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.HashAlgo != "" {
		algo, err := hashutil.ParseHashAlgo(dto.HashAlgo)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
		}
		cfg.hashAlgo = algo
	}
	if dto.LogLevel != "" {
		cfg.logLevel = dto.LogLevel
	}

	durations := []struct {
		name  string
		raw   string
		field *time.Duration
	}{
		{"timeout", dto.Timeout, &cfg.timeout},
		{"jitter", dto.Jitter, &cfg.jitter},
		{"backoffInitialDuration", dto.BackoffInitialDuration, &cfg.backoffInitialDuration},
		{"backoffMaxDuration", dto.BackoffMaxDuration, &cfg.backoffMaxDuration},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, d.name, err.Error())
		}
		*d.field = parsed
	}
	return nil
}

// WithConfigFile reads a JSON (.json) or YAML (.yaml, .yml) config file.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	cfgDTO := configDTO{}
	switch fileutil.GetFileExtension(path) {
	case "json":
		err = json.Unmarshal(configContent, &cfgDTO)
	case "yaml", "yml":
		err = yaml.Unmarshal(configContent, &cfgDTO)
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}
