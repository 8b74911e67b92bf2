package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// configEnv holds raw environment overrides. Unset variables keep
// whatever the file or the defaults provided.
type configEnv struct {
	APIKey         string        `env:"PARKFETCH_API_KEY"`
	CacheFile      string        `env:"PARKFETCH_CACHE_FILE"`
	BaseURL        string        `env:"PARKFETCH_BASE_URL"`
	PlacesEndpoint string        `env:"PARKFETCH_PLACES_ENDPOINT"`
	UserAgent      string        `env:"PARKFETCH_USER_AGENT"`
	Timeout        time.Duration `env:"PARKFETCH_TIMEOUT"`
	MaxAttempt     int           `env:"PARKFETCH_MAX_ATTEMPT"`
	Concurrency    int           `env:"PARKFETCH_CONCURRENCY"`
	HashAlgo       string        `env:"PARKFETCH_HASH_ALGO"`
	LogLevel       string        `env:"PARKFETCH_LOG"`
}

// WithEnvironment overlays PARKFETCH_* variables on the receiver and
// rebuilds it. A nil environ reads the process environment.
func (c Config) WithEnvironment(environ map[string]string) (Config, error) {
	raw := configEnv{}
	var err error
	if environ == nil {
		err = env.Parse(&raw)
	} else {
		err = env.ParseWithOptions(&raw, env.Options{Environment: environ})
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrEnvParsingFail, err.Error())
	}

	cfg := c
	err = applyDTO(&cfg, configDTO{
		BaseURL:        raw.BaseURL,
		PlacesEndpoint: raw.PlacesEndpoint,
		APIKey:         raw.APIKey,
		CacheFile:      raw.CacheFile,
		UserAgent:      raw.UserAgent,
		MaxAttempt:     raw.MaxAttempt,
		Concurrency:    raw.Concurrency,
		HashAlgo:       raw.HashAlgo,
		LogLevel:       raw.LogLevel,
	})
	if err != nil {
		return Config{}, err
	}
	if raw.Timeout != 0 {
		cfg.timeout = raw.Timeout
	}
	return cfg.Build()
}
