package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/cache"
	"github.com/rohmanhakim/parkfetch/internal/config"
	"github.com/rohmanhakim/parkfetch/internal/extractor"
	"github.com/rohmanhakim/parkfetch/internal/fetcher"
	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/internal/record"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/rohmanhakim/parkfetch/pkg/retry"
	"github.com/rohmanhakim/parkfetch/pkg/urlutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

/*
 Pipeline is the only component that decides between the cache and the
 network.

 Cache policy, applied to every cached operation:
 - compute the request key
 - on a hit, decode the stored payload and return it; no fetch happens
 - on a miss, fetch, parse, normalize, insert the raw form, return
 - an entry that no longer decodes is treated as a miss and overwritten

 Keys:
 - state index:   the canonical index URL
 - site detail:   the canonical detail URL
 - nearby places: the site's zipcode
 The state listing page is fetched on every call and never cached.

 Guarantees:
 - each key is fetched at most once, including under concurrent callers
   (one flight per key, and the store is consulted again inside it)
 - a caller that cancels stops waiting without failing other callers
   of the same key
 - SitesForState returns sites in page order regardless of concurrency
 - selection errors are raised before any I/O or cache mutation
 - the places API key never reaches a cache key, a cached value, an error
   or a metadata event

 Metadata emission is observational only and MUST NOT influence
 control flow.
*/

type Pipeline struct {
	metadataSink   metadata.MetadataSink
	store          cache.Store
	fetcher        fetcher.Fetcher
	extractor      extractor.ParkExtractor
	indexURL       url.URL
	placesEndpoint url.URL
	apiKey         string
	searchRadius   int
	maxMatches     int
	userAgent      string
	retryParam     retry.RetryParam
	concurrency    int
	flights        singleflight.Group
	hits           atomic.Int64
	misses         atomic.Int64
	fetches        atomic.Int64
}

func NewPipeline(
	cfg config.Config,
	store cache.Store,
	htmlFetcher fetcher.Fetcher,
	metadataSink metadata.MetadataSink,
) *Pipeline {
	concurrency := cfg.Concurrency()
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		metadataSink:   metadataSink,
		store:          store,
		fetcher:        htmlFetcher,
		extractor:      extractor.NewParkExtractor(metadataSink),
		indexURL:       urlutil.Canonicalize(cfg.IndexURL()),
		placesEndpoint: cfg.PlacesEndpoint(),
		apiKey:         cfg.APIKey(),
		searchRadius:   cfg.SearchRadius(),
		maxMatches:     cfg.MaxMatches(),
		userAgent:      cfg.UserAgent(),
		retryParam:     cfg.RetryParam(),
		concurrency:    concurrency,
	}
}

// StateIndex returns lowercased state name -> state page URL.
func (p *Pipeline) StateIndex(ctx context.Context) (map[string]string, failure.ClassifiedError) {
	key := p.indexURL.String()

	produce := func(ctx context.Context) (map[string]string, json.RawMessage, failure.ClassifiedError) {
		body, err := p.fetchPage(ctx, p.indexURL, fetcher.ContentHTML)
		if err != nil {
			return nil, nil, p.fetchFailed(OpStateIndex, key, err)
		}
		states, err := p.extractor.StateIndex(p.indexURL, body)
		if err != nil {
			return nil, nil, p.fetchFailed(OpStateIndex, key, err)
		}
		raw, encodeErr := json.Marshal(states)
		if encodeErr != nil {
			return nil, nil, p.fetchFailed(OpStateIndex, key, encodingError(encodeErr))
		}
		return states, raw, nil
	}

	return resolve(ctx, p, OpStateIndex, key, produce, decodeStateIndex)
}

// SitesForState fetches a state listing page and resolves every site on
// it, in page order. Up to the configured concurrency of detail lookups
// run at once; the first failure cancels the rest.
func (p *Pipeline) SitesForState(ctx context.Context, stateURL string) ([]record.Site, failure.ClassifiedError) {
	pageURL, parseErr := parsePageURL(stateURL)
	if parseErr != nil {
		return nil, p.fetchFailed(OpStateListing, stateURL, parseErr)
	}

	body, err := p.fetchPage(ctx, pageURL, fetcher.ContentHTML)
	if err != nil {
		return nil, p.fetchFailed(OpStateListing, pageURL.String(), err)
	}
	links, err := p.extractor.SiteLinks(pageURL, body)
	if err != nil {
		return nil, p.fetchFailed(OpStateListing, pageURL.String(), err)
	}

	sites := make([]record.Site, len(links))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)
	for i, link := range links {
		i, link := i, link
		group.Go(func() error {
			site, err := p.siteDetail(groupCtx, link.URL)
			if err != nil {
				return err
			}
			sites[i] = site
			return nil
		})
	}
	if groupErr := group.Wait(); groupErr != nil {
		var classified failure.ClassifiedError
		if errors.As(groupErr, &classified) {
			return nil, classified
		}
		return nil, p.fetchFailed(OpStateListing, pageURL.String(), encodingError(groupErr))
	}
	return sites, nil
}

// SiteDetail returns the site described by one detail page.
func (p *Pipeline) SiteDetail(ctx context.Context, siteURL string) (record.Site, failure.ClassifiedError) {
	pageURL, parseErr := parsePageURL(siteURL)
	if parseErr != nil {
		return record.Site{}, p.fetchFailed(OpSiteDetail, siteURL, parseErr)
	}
	return p.siteDetail(ctx, pageURL)
}

func (p *Pipeline) siteDetail(ctx context.Context, pageURL url.URL) (record.Site, failure.ClassifiedError) {
	canonical := urlutil.Canonicalize(pageURL)
	key := canonical.String()

	produce := func(ctx context.Context) (record.Site, json.RawMessage, failure.ClassifiedError) {
		body, err := p.fetchPage(ctx, canonical, fetcher.ContentHTML)
		if err != nil {
			return record.Site{}, nil, p.fetchFailed(OpSiteDetail, key, err)
		}
		fields, err := p.extractor.SiteDetail(canonical, body)
		if err != nil {
			return record.Site{}, nil, p.fetchFailed(OpSiteDetail, key, err)
		}
		site := record.NewSite(fields)
		raw, encodeErr := json.Marshal(site)
		if encodeErr != nil {
			return record.Site{}, nil, p.fetchFailed(OpSiteDetail, key, encodingError(encodeErr))
		}
		return site, raw, nil
	}

	return resolve(ctx, p, OpSiteDetail, key, produce, decodeSite)
}

// NearbyPlaces searches for places around the site's zipcode. A site
// without a zipcode is rejected before any I/O.
func (p *Pipeline) NearbyPlaces(ctx context.Context, site record.Site) (ProximityResult, failure.ClassifiedError) {
	if !site.HasZipcode() {
		return ProximityResult{}, p.invalidSelection(site.Name(), "site has no zipcode")
	}
	zipcode := site.Zipcode()

	query := url.Values{}
	query.Set("key", p.apiKey)
	query.Set("origin", zipcode)
	query.Set("radius", strconv.Itoa(p.searchRadius))
	query.Set("maxMatches", strconv.Itoa(p.maxMatches))
	query.Set("ambiguities", "ignore")
	query.Set("outFormat", "json")
	fetchParam := fetcher.NewFetchParam(p.placesEndpoint, p.userAgent, fetcher.ContentJSON).
		WithQuery(query, "key")

	produce := func(ctx context.Context) (ProximityResult, json.RawMessage, failure.ClassifiedError) {
		p.fetches.Add(1)
		result, err := p.fetcher.Fetch(ctx, fetchParam, p.retryParam)
		if err != nil {
			return ProximityResult{}, nil, p.fetchFailed(OpNearbyPlaces, fetchParam.LoggableURL(), err)
		}
		body := result.Body()
		if err := p.extractor.ValidateProximity(zipcode, body); err != nil {
			return ProximityResult{}, nil, p.fetchFailed(OpNearbyPlaces, fetchParam.LoggableURL(), err)
		}
		return ProximityResult{zipcode: zipcode, raw: body}, body, nil
	}

	decode := func(raw json.RawMessage) (ProximityResult, error) {
		if !json.Valid(raw) {
			return ProximityResult{}, fmt.Errorf("cached places response is not JSON")
		}
		return ProximityResult{zipcode: zipcode, raw: raw}, nil
	}

	return resolve(ctx, p, OpNearbyPlaces, zipcode, produce, decode)
}

// SelectSite returns the n-th site, counting from 1.
func (p *Pipeline) SelectSite(sites []record.Site, n int) (record.Site, failure.ClassifiedError) {
	if n < 1 || n > len(sites) {
		return record.Site{}, p.invalidSelection(
			strconv.Itoa(n),
			fmt.Sprintf("choose a number between 1 and %d", len(sites)),
		)
	}
	return sites[n-1], nil
}

// SelectState looks a state name up in the index, ignoring case and
// surrounding whitespace.
func (p *Pipeline) SelectState(index map[string]string, name string) (string, failure.ClassifiedError) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	stateURL, ok := index[normalized]
	if !ok || normalized == "" {
		return "", p.invalidSelection(name, "unknown state name")
	}
	return stateURL, nil
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Hits:    int(p.hits.Load()),
		Misses:  int(p.misses.Load()),
		Fetches: int(p.fetches.Load()),
	}
}

// resolve applies the cache policy for one key.
//
// The flight runs detached from the caller that started it, so one
// caller giving up never fails the others waiting on the same key. A
// caller whose own context ends stops waiting; the flight still
// completes and stores its result.
func resolve[T any](
	ctx context.Context,
	p *Pipeline,
	op Operation,
	key string,
	produce func(context.Context) (T, json.RawMessage, failure.ClassifiedError),
	decode func(json.RawMessage) (T, error),
) (T, failure.ClassifiedError) {
	var zero T
	if value, ok := lookup(p, key, decode); ok {
		p.hits.Add(1)
		p.metadataSink.RecordCache(metadata.CacheHit, key, nil)
		return value, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	var produced bool
	flight := p.flights.DoChan(key, func() (any, error) {
		// a concurrent flight for this key may have finished in between
		if value, ok := lookup(p, key, decode); ok {
			return value, nil
		}
		produced = true
		p.misses.Add(1)
		p.metadataSink.RecordCache(metadata.CacheMiss, key, nil)

		value, raw, err := produce(flightCtx)
		if err != nil {
			return nil, err
		}
		if err := p.store.Insert(key, raw); err != nil {
			return nil, p.fetchFailed(OpStoreResponse, key, err)
		}
		return value, nil
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return zero, p.fetchFailed(op, key, &retry.RetryError{
			Message:   ctx.Err().Error(),
			Retryable: false,
			Cause:     retry.ErrCanceled,
			LastErr:   ctx.Err(),
		})
	}

	// produced is only read after the flight has delivered its result
	if !produced && res.Err == nil {
		p.hits.Add(1)
		p.metadataSink.RecordCache(metadata.CacheHit, key, nil)
	}

	if res.Err != nil {
		var classified failure.ClassifiedError
		if errors.As(res.Err, &classified) {
			return zero, classified
		}
		return zero, p.fetchFailed(OpStoreResponse, key, encodingError(res.Err))
	}
	return res.Val.(T), nil
}

// lookup decodes a stored entry. An entry that fails to decode is
// recorded and reported as absent, so the caller refetches and overwrites it.
func lookup[T any](p *Pipeline, key string, decode func(json.RawMessage) (T, error)) (T, bool) {
	var zero T
	raw, ok := p.store.Lookup(key)
	if !ok {
		return zero, false
	}
	value, err := decode(raw)
	if err != nil {
		p.metadataSink.RecordError(
			time.Now(),
			"pipeline",
			"Pipeline.lookup",
			metadata.CauseContentInvalid,
			fmt.Sprintf("discarding undecodable cache entry: %v", err),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrKey, key),
			},
		)
		return zero, false
	}
	return value, true
}

func (p *Pipeline) fetchPage(ctx context.Context, pageURL url.URL, kind fetcher.ContentKind) ([]byte, failure.ClassifiedError) {
	p.fetches.Add(1)
	fetchParam := fetcher.NewFetchParam(pageURL, p.userAgent, kind)
	result, err := p.fetcher.Fetch(ctx, fetchParam, p.retryParam)
	if err != nil {
		return nil, err
	}
	return result.Body(), nil
}

func (p *Pipeline) fetchFailed(op Operation, loggableURL string, cause failure.ClassifiedError) *FetchFailedError {
	var fetchFailed *FetchFailedError
	if errors.As(cause, &fetchFailed) {
		return fetchFailed
	}
	err := &FetchFailedError{
		Operation: op,
		URL:       loggableURL,
		Cause:     cause,
	}
	p.metadataSink.RecordError(
		time.Now(),
		"pipeline",
		"Pipeline."+strings.ReplaceAll(string(op), " ", "_"),
		mapPipelineErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, loggableURL),
			metadata.NewAttr(metadata.AttrOperation, string(op)),
		},
	)
	return err
}

func (p *Pipeline) invalidSelection(selection string, message string) *InvalidSelectionError {
	err := &InvalidSelectionError{
		Message:   message,
		Selection: selection,
	}
	p.metadataSink.RecordError(
		time.Now(),
		"pipeline",
		"Pipeline.select",
		mapPipelineErrorToMetadataCause(err),
		err.Error(),
		nil,
	)
	return err
}

func parsePageURL(raw string) (url.URL, failure.ClassifiedError) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return url.URL{}, &fetcher.FetchError{
			Message:   fmt.Sprintf("not an absolute http(s) URL: %q", raw),
			Retryable: false,
			Cause:     fetcher.ErrCauseInvalidRequest,
			URL:       raw,
		}
	}
	return *parsed, nil
}

func encodingError(err error) failure.ClassifiedError {
	return &cache.CacheError{
		Message:   err.Error(),
		Retryable: false,
		Cause:     cache.ErrCauseEncodeFailure,
	}
}

func decodeStateIndex(raw json.RawMessage) (map[string]string, error) {
	states := map[string]string{}
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("cached state index is empty")
	}
	return states, nil
}

func decodeSite(raw json.RawMessage) (record.Site, error) {
	var site record.Site
	if err := json.Unmarshal(raw, &site); err != nil {
		return record.Site{}, err
	}
	return site, nil
}
