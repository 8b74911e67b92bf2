package cmd

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	cacheFile      string
	apiKey         string
	baseURL        string
	placesEndpoint string
	userAgent      string
	timeout        time.Duration
	concurrency    int
	maxAttempt     int
	logLevel       string
	outputFormat   string
	outputFile     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parkfetch",
	Short: "Look up national park sites and the places around them.",
	Long: `parkfetch lists the national park sites of a US state from nps.gov and
searches for points of interest near a chosen site.

Every page and search result is kept in a local JSON cache file, so a
request that was answered once is never sent again.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// ExecuteWithArgs runs the command tree with explicit arguments and streams.
func ExecuteWithArgs(args []string, in io.Reader, out io.Writer, errOut io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path, JSON or YAML (e.g., ./parkfetch.yaml)")
	rootCmd.PersistentFlags().StringVar(&cacheFile, "cache-file", "", "cache file path (default \"cache.json\")")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "places search API key (prefer PARKFETCH_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "park service site root (default \"https://www.nps.gov\")")
	rootCmd.PersistentFlags().StringVar(&placesEndpoint, "places-endpoint", "", "places radius search endpoint")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for a single HTTP request")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "site detail fetches in flight at once (default 1)")
	rootCmd.PersistentFlags().IntVar(&maxAttempt, "max-attempt", 0, "attempts per request for transient failures (default 1, no retry)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default \"error\")")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "output format: text, markdown or html")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write the report to this file instead of stdout")

	rootCmd.AddCommand(statesCmd)
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(nearbyCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}

// InitConfigWithError layers the configuration sources: defaults, then the
// config file if given, then PARKFETCH_* environment variables, then flags.
func InitConfigWithError() (config.Config, error) {
	var cfg config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
	} else {
		cfg, err = config.WithDefault().Build()
		if err != nil {
			return config.Config{}, err
		}
	}

	cfg, err = cfg.WithEnvironment(nil)
	if err != nil {
		return config.Config{}, err
	}

	configBuilder := &cfg

	if cacheFile != "" {
		configBuilder = configBuilder.WithCacheFile(cacheFile)
	}

	if apiKey != "" {
		configBuilder = configBuilder.WithAPIKey(apiKey)
	}

	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: --base-url: %s", config.ErrInvalidConfig, err.Error())
		}
		configBuilder = configBuilder.WithBaseURL(*parsed)
	}

	if placesEndpoint != "" {
		parsed, err := url.Parse(placesEndpoint)
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: --places-endpoint: %s", config.ErrInvalidConfig, err.Error())
		}
		configBuilder = configBuilder.WithPlacesEndpoint(*parsed)
	}

	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}

	if concurrency > 0 {
		configBuilder = configBuilder.WithConcurrency(concurrency)
	}

	if maxAttempt > 0 {
		configBuilder = configBuilder.WithMaxAttempt(maxAttempt)
	}

	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}

	return configBuilder.Build()
}

func ResetFlags() {
	cfgFile = ""
	cacheFile = ""
	apiKey = ""
	baseURL = ""
	placesEndpoint = ""
	userAgent = ""
	timeout = 0
	concurrency = 0
	maxAttempt = 0
	logLevel = ""
	outputFormat = ""
	outputFile = ""
	showKeys = false
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetCacheFileForTest(path string) {
	cacheFile = path
}

func SetAPIKeyForTest(key string) {
	apiKey = key
}

func SetBaseURLForTest(raw string) {
	baseURL = raw
}

func SetPlacesEndpointForTest(raw string) {
	placesEndpoint = raw
}

func SetConcurrencyForTest(conc int) {
	concurrency = conc
}

func SetMaxAttemptForTest(attempts int) {
	maxAttempt = attempts
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetOutputForTest(path string, format string) {
	outputFile = path
	outputFormat = format
}
