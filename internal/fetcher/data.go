package fetcher

import (
	"net/url"
)

// ContentKind is the body type a caller is prepared to parse.
type ContentKind int

const (
	ContentHTML ContentKind = iota
	ContentJSON
)

func (k ContentKind) String() string {
	if k == ContentJSON {
		return "json"
	}
	return "html"
}

// HTTP boundary

type FetchParam struct {
	fetchUrl   url.URL
	userAgent  string
	accept     ContentKind
	query      url.Values
	secretKeys []string
}

func NewFetchParam(fetchUrl url.URL, userAgent string, accept ContentKind) FetchParam {
	return FetchParam{
		fetchUrl:  fetchUrl,
		userAgent: userAgent,
		accept:    accept,
	}
}

// WithQuery sets the query string. Values of secretKeys are sent on the wire
// but masked in every URL that reaches metadata or errors.
func (p FetchParam) WithQuery(query url.Values, secretKeys ...string) FetchParam {
	p.query = query
	p.secretKeys = secretKeys
	return p
}

// RequestURL is the URL actually requested, including secrets.
func (p FetchParam) RequestURL() url.URL {
	u := p.fetchUrl
	if len(p.query) > 0 {
		u.RawQuery = p.query.Encode()
	}
	return u
}

// LoggableURL is RequestURL with secret query values masked.
func (p FetchParam) LoggableURL() string {
	if len(p.query) == 0 {
		return p.fetchUrl.String()
	}
	masked := url.Values{}
	for k, v := range p.query {
		masked[k] = append([]string(nil), v...)
	}
	for _, k := range p.secretKeys {
		if _, ok := masked[k]; ok {
			masked.Set(k, "REDACTED")
		}
	}
	u := p.fetchUrl
	u.RawQuery = masked.Encode()
	return u.String()
}

func (p FetchParam) Accept() ContentKind {
	return p.accept
}

type FetchResult struct {
	url  url.URL
	body []byte
	meta ResponseMeta
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

func (f *FetchResult) ContentType() string {
	return f.meta.contentType
}

func (f *FetchResult) Attempts() int {
	return f.meta.attempts
}

type ResponseMeta struct {
	statusCode  int
	contentType string
	attempts    int
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	url url.URL,
	body []byte,
	statusCode int,
	contentType string,
) FetchResult {
	return FetchResult{
		url:  url,
		body: body,
		meta: ResponseMeta{
			statusCode:  statusCode,
			contentType: contentType,
			attempts:    1,
		},
	}
}
