package pipeline_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/cache"
	"github.com/rohmanhakim/parkfetch/internal/config"
	"github.com/rohmanhakim/parkfetch/internal/fetcher"
	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/internal/pipeline"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/rohmanhakim/parkfetch/pkg/retry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testBaseURL     = "https://www.nps.gov"
	testPlacesURL   = "http://www.mapquestapi.com/search/v2/radius"
	testAPIKey      = "test-api-key-123"
	michiganURL     = "https://www.nps.gov/state/mi/index.htm"
	isleRoyaleURL   = "https://www.nps.gov/isro/index.htm"
	picturedRockURL = "https://www.nps.gov/piro/index.htm"
	sleepingBearURL = "https://www.nps.gov/slbe/index.htm"
)

// fetcherMock is a testify mock for the Fetcher
type fetcherMock struct {
	mock.Mock
}

func (f *fetcherMock) Fetch(
	ctx context.Context,
	fetchParam fetcher.FetchParam,
	retryParam retry.RetryParam,
) (fetcher.FetchResult, failure.ClassifiedError) {
	args := f.Called(ctx, fetchParam, retryParam)
	result := args.Get(0).(fetcher.FetchResult)
	var err failure.ClassifiedError
	if args.Get(1) != nil {
		err = args.Get(1).(failure.ClassifiedError)
	}
	return result, err
}

// forURL matches a page fetch by its exact URL
func forURL(raw string) any {
	return mock.MatchedBy(func(p fetcher.FetchParam) bool {
		return p.LoggableURL() == raw
	})
}

// forPlaces matches a places search by origin
func forPlaces(zipcode string) any {
	return mock.MatchedBy(func(p fetcher.FetchParam) bool {
		requestURL := p.RequestURL()
		return strings.HasPrefix(requestURL.String(), testPlacesURL) &&
			requestURL.Query().Get("origin") == zipcode
	})
}

func htmlResult(t *testing.T, raw string, body string) fetcher.FetchResult {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return fetcher.NewFetchResultForTest(*u, []byte(body), 200, "text/html; charset=utf-8")
}

func jsonResult(t *testing.T, body string) fetcher.FetchResult {
	t.Helper()
	u, err := url.Parse(testPlacesURL)
	require.NoError(t, err)
	return fetcher.NewFetchResultForTest(*u, []byte(body), 200, "application/json")
}

func (f *fetcherMock) onPage(t *testing.T, raw string, body string) *mock.Call {
	return f.On("Fetch", mock.Anything, forURL(raw), mock.Anything).Return(htmlResult(t, raw, body), nil)
}

// slowly delays every matching response so concurrent callers overlap
func slowly(call *mock.Call) *mock.Call {
	return call.Run(func(args mock.Arguments) {
		time.Sleep(30 * time.Millisecond)
	})
}

func testConfig(t *testing.T, concurrency int) config.Config {
	t.Helper()
	cfg, err := config.WithDefault().
		WithAPIKey(testAPIKey).
		WithConcurrency(concurrency).
		Build()
	require.NoError(t, err)
	return cfg
}

func newPipeline(t *testing.T, store cache.Store, f fetcher.Fetcher, concurrency int) *pipeline.Pipeline {
	t.Helper()
	return pipeline.NewPipeline(testConfig(t, concurrency), store, f, &metadata.NoopSink{})
}

const indexPage = `<html><body>
<div class="SearchBar-keywordSearch input-group input-group-lg">
  <a href="/state/al/index.htm">Alabama</a>
  <a href="/state/mi/index.htm">Michigan</a>
</div>
</body></html>`

const michiganListing = `<html><body>
<ul id="list_parks">
  <li><h3><a href="/isro/index.htm">Isle Royale</a></h3></li>
  <li><h3><a href="/piro/index.htm">Pictured Rocks</a></h3></li>
  <li><h3><a href="/slbe/index.htm">Sleeping Bear Dunes</a></h3></li>
</ul>
</body></html>`

func detailPage(name, category, locality, region, zipcode, phone string) string {
	return `<html><body>
<div class="Hero-titleContainer clearfix">
  <a href="#">` + name + `</a>
  <span class="Hero-designation">` + category + `</span>
</div>
<div class="ParkFooter-contact">
  <span itemprop="addressLocality">` + locality + `</span>,
  <span itemprop="addressRegion">` + region + `</span>
  <span itemprop="postalCode">` + zipcode + `</span>
  <span itemprop="telephone">` + phone + `</span>
</div>
</body></html>`
}

var (
	isleRoyalePage   = detailPage("Isle Royale", "National Park", "Houghton", "MI", " 49931 ", "\n  (906) 482-0984  \n")
	picturedRockPage = detailPage("Pictured Rocks", "National Lakeshore", "Munising", "MI", "49862", "(906) 387-3700")
	sleepingBearPage = detailPage("Sleeping Bear Dunes", "National Lakeshore", "Empire", "MI", "49630", "(231) 326-4700")
)

const placesBody = `{"info":{"statuscode":0,"messages":[]},"searchResults":[{"name":"Isle Royale Queen IV","fields":{"group_sic_code_name":"Ferries","address":"14 Waterfront St","city":"Copper Harbor"}}]}`
