package extractor_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/stretchr/testify/require"
)

type recordedError struct {
	Action string
	Cause  metadata.ErrorCause
	Attrs  []metadata.Attribute
}

// mockMetadataSink is a test spy that captures recorded errors
type mockMetadataSink struct {
	metadata.NoopSink
	errors []recordedError
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	m.errors = append(m.errors, recordedError{Action: action, Cause: cause, Attrs: attrs})
}

func (m *mockMetadataSink) missingFields() []string {
	var fields []string
	for _, e := range m.errors {
		for _, a := range e.Attrs {
			if a.Key == metadata.AttrField {
				fields = append(fields, a.Value)
			}
		}
	}
	return fields
}

func mustParseURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

const indexPage = `<!DOCTYPE html>
<html><body>
<div class="SearchBar-keywordSearch input-group input-group-lg">
  <ul class="dropdown-menu">
    <li><a href="/state/al/index.htm">Alabama</a></li>
    <li><a href="/state/mi/index.htm">Michigan</a></li>
    <li><a href="/state/wy/index.htm"> Wyoming </a></li>
  </ul>
</div>
<div class="Footer"><a href="/aboutus/index.htm">About</a></div>
</body></html>`

const michiganListing = `<!DOCTYPE html>
<html><body>
<ul id="list_parks">
  <li class="clearfix">
    <h2>National Park</h2>
    <h3><a href="/isro/">Isle Royale</a></h3>
  </li>
  <li class="clearfix">
    <h2>National Lakeshore</h2>
    <h3><a href="/piro/">Pictured Rocks</a></h3>
  </li>
  <li class="clearfix">
    <h2>National Lakeshore</h2>
    <h3><a href="/slbe/">Sleeping Bear Dunes</a></h3>
  </li>
</ul>
<ul class="other"><li><h3><a href="/not-a-site/">Elsewhere</a></h3></li></ul>
</body></html>`

const isleRoyaleDetail = `<!DOCTYPE html>
<html><body>
<div class="Hero-titleContainer clearfix">
  <a href="/isro/" class="Hero-title">Isle Royale</a>
  <span class="Hero-designation">National Park</span>
</div>
<div class="ParkFooter-contact">
  <p class="adr">
    <span itemprop="addressLocality">Houghton</span>,
    <span itemprop="addressRegion">MI</span>
    <span itemprop="postalCode"> 49931
    </span>
  </p>
  <span itemprop="telephone">
    (906) 482-0984
  </span>
</div>
</body></html>`
