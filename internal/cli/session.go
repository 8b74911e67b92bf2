package cmd

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rohmanhakim/parkfetch/internal/cache"
	"github.com/rohmanhakim/parkfetch/internal/config"
	"github.com/rohmanhakim/parkfetch/internal/fetcher"
	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/internal/pipeline"
	"github.com/rohmanhakim/parkfetch/internal/render"
	"github.com/rohmanhakim/parkfetch/internal/storage"
	"github.com/spf13/cobra"
)

// session is everything one command invocation needs. The cache file is
// loaded once when the session opens.
type session struct {
	cfg       config.Config
	recorder  *metadata.Recorder
	store     *cache.FileStore
	pipeline  *pipeline.Pipeline
	format    render.Format
	reports   storage.LocalSink
	startedAt time.Time
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := InitConfigWithError()
	if err != nil {
		return nil, err
	}
	format, err := render.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	logger, err := metadata.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel())
	if err != nil {
		return nil, err
	}
	recorder := metadata.NewRecorder(uuid.NewString(), logger)

	store := cache.Load(cfg.CacheFile(), recorder)
	httpFetcher := fetcher.NewHttpFetcher(
		recorder,
		&http.Client{Timeout: cfg.Timeout()},
		cfg.HashAlgo(),
	)

	return &session{
		cfg:       cfg,
		recorder:  recorder,
		store:     store,
		pipeline:  pipeline.NewPipeline(cfg, store, httpFetcher, recorder),
		format:    format,
		reports:   storage.NewLocalSink(recorder, cfg.HashAlgo()),
		startedAt: time.Now(),
	}, nil
}

func (s *session) close() {
	stats := s.pipeline.Stats()
	s.recorder.RecordSessionStats(stats.Hits, stats.Misses, stats.Fetches, time.Since(s.startedAt))
}

// emit sends a rendered report to stdout, or to the --output file when set.
func (s *session) emit(cmd *cobra.Command, renderTo func(io.Writer) error) error {
	if outputFile == "" {
		return renderTo(cmd.OutOrStdout())
	}
	var buf bytes.Buffer
	if err := renderTo(&buf); err != nil {
		return err
	}
	result, err := s.reports.Write(outputFile, buf.Bytes())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report written to %s (%s)\n", result.Path(), humanize.Bytes(uint64(result.Size())))
	return nil
}
