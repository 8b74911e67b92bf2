package extractor

import "net/url"

// SiteLink is one entry of a state listing page, in page order.
type SiteLink struct {
	Name string
	URL  url.URL
}
