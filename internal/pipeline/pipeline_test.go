package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/cache"
	"github.com/rohmanhakim/parkfetch/internal/extractor"
	"github.com/rohmanhakim/parkfetch/internal/fetcher"
	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/internal/pipeline"
	"github.com/rohmanhakim/parkfetch/internal/record"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStateIndex_MissThenHit(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, testBaseURL+"/index.htm", indexPage).Once()
	store := cache.NewMemoryStore()
	p := newPipeline(t, store, f, 1)

	first, err := p.StateIndex(context.Background())
	require.Nil(t, err)
	assert.Equal(t, map[string]string{
		"alabama":  "https://www.nps.gov/state/al/index.htm",
		"michigan": "https://www.nps.gov/state/mi/index.htm",
	}, first)

	second, err := p.StateIndex(context.Background())
	require.Nil(t, err)
	assert.Equal(t, first, second)

	f.AssertNumberOfCalls(t, "Fetch", 1)
	_, cached := store.Lookup(testBaseURL + "/index.htm")
	assert.True(t, cached)
	assert.Equal(t, pipeline.Stats{Hits: 1, Misses: 1, Fetches: 1}, p.Stats())
}

func TestStateIndex_FetchFailure(t *testing.T) {
	f := new(fetcherMock)
	f.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(
		fetcher.FetchResult{},
		&fetcher.FetchError{Message: "server error: 503", Retryable: true, Cause: fetcher.ErrCauseRequest5xx},
	)
	store := cache.NewMemoryStore()
	p := newPipeline(t, store, f, 1)

	_, err := p.StateIndex(context.Background())

	require.NotNil(t, err)
	var fetchFailed *pipeline.FetchFailedError
	require.True(t, errors.As(err, &fetchFailed))
	assert.Equal(t, pipeline.OpStateIndex, fetchFailed.Operation)
	var fetchErr *fetcher.FetchError
	assert.True(t, errors.As(err, &fetchErr), "the transport cause is kept")
	assert.Equal(t, 0, store.Len(), "failures are not cached")
}

func TestStateIndex_ParseFailureIsFetchFailed(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, testBaseURL+"/index.htm", `<html><body>down for maintenance</body></html>`)
	p := newPipeline(t, cache.NewMemoryStore(), f, 1)

	_, err := p.StateIndex(context.Background())

	var fetchFailed *pipeline.FetchFailedError
	require.True(t, errors.As(err, &fetchFailed))
	var extractionErr *extractor.ExtractionError
	assert.True(t, errors.As(err, &extractionErr))
}

func TestStateIndex_UndecodableEntryIsRefetched(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, testBaseURL+"/index.htm", indexPage).Once()
	store := cache.NewMemoryStore()
	require.Nil(t, store.Insert(testBaseURL+"/index.htm", json.RawMessage(`["michigan"]`)))
	p := newPipeline(t, store, f, 1)

	states, err := p.StateIndex(context.Background())

	require.Nil(t, err)
	assert.Contains(t, states, "michigan")
	raw, _ := store.Lookup(testBaseURL + "/index.htm")
	assert.JSONEq(t, `{"alabama":"https://www.nps.gov/state/al/index.htm","michigan":"https://www.nps.gov/state/mi/index.htm"}`, string(raw))
}

func TestSiteDetail_Idempotent(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, isleRoyaleURL, isleRoyalePage).Once()
	p := newPipeline(t, cache.NewMemoryStore(), f, 1)

	first, err := p.SiteDetail(context.Background(), isleRoyaleURL)
	require.Nil(t, err)
	second, err := p.SiteDetail(context.Background(), isleRoyaleURL)
	require.Nil(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Isle Royale (National Park): Houghton, MI 49931", first.Describe())
	assert.Equal(t, "(906) 482-0984", first.Phone())
	f.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestSiteDetail_EquivalentURLsShareOneKey(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, isleRoyaleURL, isleRoyalePage).Once()
	p := newPipeline(t, cache.NewMemoryStore(), f, 1)

	_, err := p.SiteDetail(context.Background(), isleRoyaleURL)
	require.Nil(t, err)
	_, err = p.SiteDetail(context.Background(), "HTTPS://www.nps.gov:443/isro/index.htm#contact")
	require.Nil(t, err)

	f.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestSiteDetail_MissingAddressSpans(t *testing.T) {
	page := `<html><body>
<div class="Hero-titleContainer"><a>Keweenaw</a><span class="Hero-designation">National Historical Park</span></div>
<div class="ParkFooter-contact">
  <span itemprop="postalCode">49913</span>
  <span itemprop="telephone">
      (906) 337-3168
  </span>
</div></body></html>`
	f := new(fetcherMock)
	f.onPage(t, "https://www.nps.gov/kewe/index.htm", page)
	p := newPipeline(t, cache.NewMemoryStore(), f, 1)

	site, err := p.SiteDetail(context.Background(), "https://www.nps.gov/kewe/index.htm")

	require.Nil(t, err)
	assert.Equal(t, record.SentinelAddress, site.Address())
	assert.Equal(t, "(906) 337-3168", site.Phone())
	assert.Equal(t, "Keweenaw", site.Name())
}

func TestSiteDetail_CachedAsNamedFields(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, isleRoyaleURL, isleRoyalePage)
	store := cache.NewMemoryStore()
	p := newPipeline(t, store, f, 1)

	_, err := p.SiteDetail(context.Background(), isleRoyaleURL)
	require.Nil(t, err)

	raw, ok := store.Lookup(isleRoyaleURL)
	require.True(t, ok)
	assert.JSONEq(t, `{
		"category": "National Park",
		"name": "Isle Royale",
		"address": "Houghton, MI",
		"zipcode": "49931",
		"phone": "(906) 482-0984"
	}`, string(raw))
}

func TestSiteDetail_InvalidURL(t *testing.T) {
	f := new(fetcherMock)
	p := newPipeline(t, cache.NewMemoryStore(), f, 1)

	_, err := p.SiteDetail(context.Background(), "/isro/index.htm")

	var fetchFailed *pipeline.FetchFailedError
	require.True(t, errors.As(err, &fetchFailed))
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestSitesForState_PageOrder(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, michiganURL, michiganListing)
	f.onPage(t, isleRoyaleURL, isleRoyalePage).Once()
	f.onPage(t, picturedRockURL, picturedRockPage).Once()
	f.onPage(t, sleepingBearURL, sleepingBearPage).Once()
	p := newPipeline(t, cache.NewMemoryStore(), f, 1)

	sites, err := p.SitesForState(context.Background(), michiganURL)

	require.Nil(t, err)
	require.Len(t, sites, 3)
	assert.Equal(t, "Isle Royale", sites[0].Name())
	assert.Equal(t, "Pictured Rocks", sites[1].Name())
	assert.Equal(t, "Sleeping Bear Dunes", sites[2].Name())
}

func TestSitesForState_ListingIsNeverCached(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, michiganURL, michiganListing).Twice()
	f.onPage(t, isleRoyaleURL, isleRoyalePage).Once()
	f.onPage(t, picturedRockURL, picturedRockPage).Once()
	f.onPage(t, sleepingBearURL, sleepingBearPage).Once()
	store := cache.NewMemoryStore()
	p := newPipeline(t, store, f, 1)

	_, err := p.SitesForState(context.Background(), michiganURL)
	require.Nil(t, err)
	_, err = p.SitesForState(context.Background(), michiganURL)
	require.Nil(t, err)

	// listing twice, each detail once
	f.AssertNumberOfCalls(t, "Fetch", 5)
	_, listingCached := store.Lookup(michiganURL)
	assert.False(t, listingCached)
	assert.Equal(t, 3, store.Len())
}

func TestSitesForState_ConcurrentKeepsOrderAndFetchesOnce(t *testing.T) {
	duplicated := strings.Replace(michiganListing,
		`<li><h3><a href="/slbe/index.htm">Sleeping Bear Dunes</a></h3></li>`,
		`<li><h3><a href="/slbe/index.htm">Sleeping Bear Dunes</a></h3></li>
  <li><h3><a href="/isro/index.htm">Isle Royale again</a></h3></li>`, 1)

	f := new(fetcherMock)
	f.onPage(t, michiganURL, duplicated)
	slowly(f.onPage(t, isleRoyaleURL, isleRoyalePage))
	slowly(f.onPage(t, picturedRockURL, picturedRockPage))
	slowly(f.onPage(t, sleepingBearURL, sleepingBearPage))
	p := newPipeline(t, cache.NewMemoryStore(), f, 4)

	sites, err := p.SitesForState(context.Background(), michiganURL)

	require.Nil(t, err)
	names := []string{}
	for _, s := range sites {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"Isle Royale", "Pictured Rocks", "Sleeping Bear Dunes", "Isle Royale"}, names)

	isroCalls := 0
	for _, call := range f.Calls {
		param := call.Arguments.Get(1).(fetcher.FetchParam)
		if param.LoggableURL() == isleRoyaleURL {
			isroCalls++
		}
	}
	assert.Equal(t, 1, isroCalls, "one fetch per key under concurrency")
	f.AssertNumberOfCalls(t, "Fetch", 4)
}

func TestSiteDetail_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := new(fetcherMock)
	slowly(f.onPage(t, isleRoyaleURL, isleRoyalePage))
	p := newPipeline(t, cache.NewMemoryStore(), f, 1)

	var wg sync.WaitGroup
	results := make([]record.Site, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			site, err := p.SiteDetail(context.Background(), isleRoyaleURL)
			assert.Nil(t, err)
			results[i] = site
		}()
	}
	wg.Wait()

	f.AssertNumberOfCalls(t, "Fetch", 1)
	for _, site := range results {
		assert.Equal(t, "Isle Royale", site.Name())
	}
	stats := p.Stats()
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 7, stats.Hits)
}

func TestSiteDetail_CanceledCallerDoesNotFailOthers(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, isleRoyaleURL, isleRoyalePage).Run(func(args mock.Arguments) {
		time.Sleep(150 * time.Millisecond)
	})
	store := cache.NewMemoryStore()
	p := newPipeline(t, store, f, 1)

	ctxA, cancelA := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var errA error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.SiteDetail(ctxA, isleRoyaleURL)
		if err != nil {
			errA = err
		}
	}()

	// let the first caller start the flight
	time.Sleep(10 * time.Millisecond)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancelA()
	}()

	site, errB := p.SiteDetail(context.Background(), isleRoyaleURL)
	wg.Wait()

	require.Nil(t, errB)
	assert.Equal(t, "Isle Royale", site.Name())

	require.Error(t, errA)
	assert.True(t, errors.Is(errA, context.Canceled))
	var fetchFailed *pipeline.FetchFailedError
	require.True(t, errors.As(errA, &fetchFailed))
	assert.Equal(t, pipeline.OpSiteDetail, fetchFailed.Operation)

	f.AssertNumberOfCalls(t, "Fetch", 1)
	_, stored := store.Lookup(isleRoyaleURL)
	assert.True(t, stored)
}

func TestSitesForState_DetailFailurePropagates(t *testing.T) {
	f := new(fetcherMock)
	f.onPage(t, michiganURL, michiganListing)
	f.onPage(t, isleRoyaleURL, isleRoyalePage)
	f.On("Fetch", mock.Anything, forURL(picturedRockURL), mock.Anything).Return(
		fetcher.FetchResult{},
		&fetcher.FetchError{Message: "page not found (404)", Cause: fetcher.ErrCauseRequestNotFound},
	)
	f.onPage(t, sleepingBearURL, sleepingBearPage)
	p := newPipeline(t, cache.NewMemoryStore(), f, 1)

	sites, err := p.SitesForState(context.Background(), michiganURL)

	assert.Nil(t, sites)
	var fetchFailed *pipeline.FetchFailedError
	require.True(t, errors.As(err, &fetchFailed))
	assert.Equal(t, pipeline.OpSiteDetail, fetchFailed.Operation)
	assert.Equal(t, picturedRockURL, fetchFailed.URL)
}

func TestNearbyPlaces_CachedZipcodeIssuesNoRequest(t *testing.T) {
	f := new(fetcherMock)
	store := cache.NewMemoryStore()
	stored := json.RawMessage(`{"searchResults":[{"name":"Cached Diner","fields":{"group_sic_code_name":"Restaurants","address":"1 Main St","city":"Houghton"}}]}`)
	require.Nil(t, store.Insert("49931", stored))
	p := newPipeline(t, store, f, 1)
	site := record.NewSite(record.SiteFields{Name: record.Found("Isle Royale"), Zipcode: record.Found("49931")})

	result, err := p.NearbyPlaces(context.Background(), site)

	require.Nil(t, err)
	assert.JSONEq(t, string(stored), string(result.Raw()))
	require.Len(t, result.Places(), 1)
	assert.Equal(t, "- Cached Diner (Restaurants): 1 Main St, Houghton", result.Places()[0].Describe())
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestNearbyPlaces_MissStoresRawBodyWithoutCredential(t *testing.T) {
	f := new(fetcherMock)
	f.On("Fetch", mock.Anything, forPlaces("49931"), mock.Anything).Return(jsonResult(t, placesBody), nil).Once()
	store := cache.NewMemoryStore()
	p := newPipeline(t, store, f, 1)
	site := record.NewSite(record.SiteFields{Name: record.Found("Isle Royale"), Zipcode: record.Found("49931")})

	result, err := p.NearbyPlaces(context.Background(), site)
	require.Nil(t, err)
	assert.Equal(t, "49931", result.Zipcode())

	param := f.Calls[0].Arguments.Get(1).(fetcher.FetchParam)
	requestURL := param.RequestURL()
	query := requestURL.Query()
	assert.Equal(t, testAPIKey, query.Get("key"))
	assert.Equal(t, "10", query.Get("radius"))
	assert.Equal(t, "10", query.Get("maxMatches"))
	assert.Equal(t, "ignore", query.Get("ambiguities"))
	assert.Equal(t, "json", query.Get("outFormat"))
	assert.Equal(t, fetcher.ContentJSON, param.Accept())

	raw, ok := store.Lookup("49931")
	require.True(t, ok)
	assert.JSONEq(t, placesBody, string(raw))
	assert.NotContains(t, string(raw), testAPIKey)

	_, err = p.NearbyPlaces(context.Background(), site)
	require.Nil(t, err)
	f.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestNearbyPlaces_ProviderRejectionIsNotCached(t *testing.T) {
	f := new(fetcherMock)
	f.On("Fetch", mock.Anything, forPlaces("49931"), mock.Anything).
		Return(jsonResult(t, `{"info":{"statuscode":403,"messages":["This key is not authorized"]}}`), nil)
	store := cache.NewMemoryStore()
	p := newPipeline(t, store, f, 1)
	site := record.NewSite(record.SiteFields{Zipcode: record.Found("49931")})

	_, err := p.NearbyPlaces(context.Background(), site)

	var fetchFailed *pipeline.FetchFailedError
	require.True(t, errors.As(err, &fetchFailed))
	assert.Equal(t, pipeline.OpNearbyPlaces, fetchFailed.Operation)
	assert.NotContains(t, err.Error(), testAPIKey)
	assert.Contains(t, fetchFailed.URL, "key=REDACTED")
	assert.Equal(t, 0, store.Len())
}

func TestNearbyPlaces_SiteWithoutZipcode(t *testing.T) {
	f := new(fetcherMock)
	store := cache.NewMemoryStore()
	p := newPipeline(t, store, f, 1)
	site := record.NewSite(record.SiteFields{Name: record.Found("North Country")})

	_, err := p.NearbyPlaces(context.Background(), site)

	var invalid *pipeline.InvalidSelectionError
	require.True(t, errors.As(err, &invalid))
	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0, store.Len())
}

func TestSelectSite(t *testing.T) {
	sites := []record.Site{
		record.NewSite(record.SiteFields{Name: record.Found("Isle Royale")}),
		record.NewSite(record.SiteFields{Name: record.Found("Pictured Rocks")}),
	}
	store := cache.NewMemoryStore()
	require.Nil(t, store.Insert("49931", json.RawMessage(`{}`)))
	p := newPipeline(t, store, new(fetcherMock), 1)

	site, err := p.SelectSite(sites, 2)
	require.Nil(t, err)
	assert.Equal(t, "Pictured Rocks", site.Name())

	for _, n := range []int{0, -1, 3} {
		_, err := p.SelectSite(sites, n)
		var invalid *pipeline.InvalidSelectionError
		require.True(t, errors.As(err, &invalid), "selection %d", n)
	}
	assert.Equal(t, 1, store.Len(), "rejected selections leave the cache alone")
	assert.Equal(t, pipeline.Stats{}, p.Stats())
}

func TestSelectState(t *testing.T) {
	index := map[string]string{"michigan": michiganURL}
	p := newPipeline(t, cache.NewMemoryStore(), new(fetcherMock), 1)

	stateURL, err := p.SelectState(index, "  Michigan ")
	require.Nil(t, err)
	assert.Equal(t, michiganURL, stateURL)

	_, err = p.SelectState(index, "atlantis")
	var invalid *pipeline.InvalidSelectionError
	assert.True(t, errors.As(err, &invalid))

	_, err = p.SelectState(index, "")
	assert.True(t, errors.As(err, &invalid))
}

func TestPipeline_FreshProcessServesEverythingFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	sink := &metadata.NoopSink{}

	f := new(fetcherMock)
	f.onPage(t, testBaseURL+"/index.htm", indexPage).Once()
	f.onPage(t, isleRoyaleURL, isleRoyalePage).Once()
	f.On("Fetch", mock.Anything, forPlaces("49931"), mock.Anything).Return(jsonResult(t, placesBody), nil).Once()

	first := newPipeline(t, cache.Load(path, sink), f, 1)
	states, err := first.StateIndex(context.Background())
	require.Nil(t, err)
	site, err := first.SiteDetail(context.Background(), isleRoyaleURL)
	require.Nil(t, err)
	places, err := first.NearbyPlaces(context.Background(), site)
	require.Nil(t, err)

	// a second process with a fresh store and a fetcher that must not be called
	idle := new(fetcherMock)
	second := newPipeline(t, cache.Load(path, sink), idle, 1)
	statesAgain, err := second.StateIndex(context.Background())
	require.Nil(t, err)
	siteAgain, err := second.SiteDetail(context.Background(), isleRoyaleURL)
	require.Nil(t, err)
	placesAgain, err := second.NearbyPlaces(context.Background(), siteAgain)
	require.Nil(t, err)

	assert.Equal(t, states, statesAgain)
	assert.Equal(t, site, siteAgain)
	assert.JSONEq(t, string(places.Raw()), string(placesAgain.Raw()))
	idle.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, pipeline.Stats{Hits: 3}, second.Stats())
}

func TestFetchFailedError_Severity(t *testing.T) {
	retryable := &pipeline.FetchFailedError{
		Operation: pipeline.OpStateIndex,
		Cause:     &fetcher.FetchError{Retryable: true, Cause: fetcher.ErrCauseRequest5xx},
	}
	assert.Equal(t, failure.SeverityRecoverable, retryable.Severity())

	fatal := &pipeline.FetchFailedError{Operation: pipeline.OpStateIndex}
	assert.Equal(t, failure.SeverityFatal, fatal.Severity())
}
