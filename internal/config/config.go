package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/rohmanhakim/parkfetch/pkg/hashutil"
	"github.com/rohmanhakim/parkfetch/pkg/retry"
	"github.com/rohmanhakim/parkfetch/pkg/timeutil"
)

const (
	DefaultBaseURL        = "https://www.nps.gov"
	DefaultPlacesEndpoint = "http://www.mapquestapi.com/search/v2/radius"
	DefaultCacheFile      = "cache.json"
	DefaultUserAgent      = "parkfetch/1.0"
)

type Config struct {
	//===============
	// Sources
	//===============
	// Root of the park service site; the state index lives at {baseURL}/index.htm
	baseURL url.URL
	// Places radius search endpoint
	placesEndpoint url.URL
	// Credential for the places endpoint. Never logged, never cached.
	apiKey string
	// Search radius in miles around a site's zipcode
	searchRadius int
	// Maximum number of places returned per search
	maxMatches int

	//===============
	// Cache
	//===============
	// Path of the JSON cache file
	cacheFile string

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request
	timeout time.Duration
	// User agent that will be used in the request header. In raw string
	userAgent string
	// Number of site detail fetches allowed in flight at once
	concurrency int

	//===============
	// Retry
	//===============
	// maximum attempt per request; 1 disables retry
	maxAttempt int
	// Randomized variation added on top of each backoff delay
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration

	//===============
	// Observability
	//===============
	// Hash algorithm for fetched content hashes
	hashAlgo hashutil.HashAlgo
	// Minimum log level
	logLevel string
}

// WithDefault creates a new Config with default values for every field.
func WithDefault() *Config {
	baseURL, _ := url.Parse(DefaultBaseURL)
	placesEndpoint, _ := url.Parse(DefaultPlacesEndpoint)
	defaultConfig := Config{
		baseURL:                *baseURL,
		placesEndpoint:         *placesEndpoint,
		searchRadius:           10,
		maxMatches:             10,
		cacheFile:              DefaultCacheFile,
		timeout:                10 * time.Second,
		userAgent:              DefaultUserAgent,
		concurrency:            1,
		maxAttempt:             1,
		jitter:                 100 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		backoffInitialDuration: 200 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     5 * time.Second,
		hashAlgo:               hashutil.HashAlgoSHA256,
		logLevel:               "error",
	}
	return &defaultConfig
}

func (c *Config) WithBaseURL(baseURL url.URL) *Config {
	c.baseURL = baseURL
	return c
}

func (c *Config) WithPlacesEndpoint(endpoint url.URL) *Config {
	c.placesEndpoint = endpoint
	return c
}

func (c *Config) WithAPIKey(apiKey string) *Config {
	c.apiKey = apiKey
	return c
}

func (c *Config) WithSearchRadius(radius int) *Config {
	c.searchRadius = radius
	return c
}

func (c *Config) WithMaxMatches(maxMatches int) *Config {
	c.maxMatches = maxMatches
	return c
}

func (c *Config) WithCacheFile(path string) *Config {
	c.cacheFile = path
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithConcurrency(concurrency int) *Config {
	c.concurrency = concurrency
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithHashAlgo(algo hashutil.HashAlgo) *Config {
	c.hashAlgo = algo
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) Build() (Config, error) {
	if err := validateHTTPURL("baseUrl", c.baseURL); err != nil {
		return Config{}, err
	}
	if err := validateHTTPURL("placesEndpoint", c.placesEndpoint); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(c.cacheFile) == "" {
		return Config{}, fmt.Errorf("%w: cacheFile cannot be empty", ErrInvalidConfig)
	}
	if c.timeout <= 0 {
		return Config{}, fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, c.timeout)
	}
	if c.concurrency < 1 {
		return Config{}, fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.concurrency)
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempt must be at least 1, got %d", ErrInvalidConfig, c.maxAttempt)
	}
	if c.searchRadius < 1 || c.maxMatches < 1 {
		return Config{}, fmt.Errorf("%w: searchRadius and maxMatches must be positive", ErrInvalidConfig)
	}
	if c.backoffMultiplier < 1 {
		return Config{}, fmt.Errorf("%w: backoffMultiplier must be at least 1, got %v", ErrInvalidConfig, c.backoffMultiplier)
	}
	if _, err := hashutil.ParseHashAlgo(string(c.hashAlgo)); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if _, err := log.ParseLevel(c.logLevel); err != nil {
		return Config{}, fmt.Errorf("%w: logLevel %q", ErrInvalidConfig, c.logLevel)
	}
	c.apiKey = strings.TrimSpace(c.apiKey)
	return *c, nil
}

func validateHTTPURL(name string, u url.URL) error {
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL, got %q", ErrInvalidConfig, name, u.String())
	}
	return nil
}

func (c Config) BaseURL() url.URL {
	return c.baseURL
}

// IndexURL is the page listing every state.
func (c Config) IndexURL() url.URL {
	index := c.baseURL
	index.Path = strings.TrimRight(index.Path, "/") + "/index.htm"
	index.RawQuery = ""
	index.Fragment = ""
	return index
}

func (c Config) PlacesEndpoint() url.URL {
	return c.placesEndpoint
}

func (c Config) APIKey() string {
	return c.apiKey
}

func (c Config) SearchRadius() int {
	return c.searchRadius
}

func (c Config) MaxMatches() int {
	return c.maxMatches
}

func (c Config) CacheFile() string {
	return c.cacheFile
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) Concurrency() int {
	return c.concurrency
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) HashAlgo() hashutil.HashAlgo {
	return c.hashAlgo
}

func (c Config) LogLevel() string {
	return c.logLevel
}

// RetryParam assembles the transport retry policy.
func (c Config) RetryParam() retry.RetryParam {
	return retry.NewRetryParam(
		c.jitter,
		c.randomSeed,
		c.maxAttempt,
		timeutil.NewBackoffParam(
			c.backoffInitialDuration,
			c.backoffMultiplier,
			c.backoffMaxDuration,
		),
	)
}

// String never includes the API key.
func (c Config) String() string {
	key := "unset"
	if c.apiKey != "" {
		key = "set"
	}
	return fmt.Sprintf(
		"baseUrl=%s placesEndpoint=%s apiKey=%s cacheFile=%s concurrency=%d maxAttempt=%d timeout=%v",
		c.baseURL.String(), c.placesEndpoint.String(), key, c.cacheFile, c.concurrency, c.maxAttempt, c.timeout,
	)
}
