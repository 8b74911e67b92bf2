package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Canonicalize maps equivalent spellings of a page URL to one form, so that
// the same page always produces the same cache key.
//
//   - scheme and host are lowercased
//   - default ports are dropped
//   - trailing slashes are removed from the path, except for root "/"
//   - fragment and query are removed
//
// Canonicalize is idempotent and never mutates its input.
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = strings.ToLower(canonical.Scheme)
	canonical.Host = strings.ToLower(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	if len(canonical.Path) > 1 {
		canonical.Path = strings.TrimRight(canonical.Path, "/")
		if canonical.Path == "" {
			canonical.Path = "/"
		}
		canonical.RawPath = ""
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// Resolve resolves href (absolute, or relative like "/state/mi/index.htm")
// against base and canonicalizes the result. Only http and https results
// are accepted.
func Resolve(base url.URL, href string) (url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return url.URL{}, fmt.Errorf("empty href")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return url.URL{}, fmt.Errorf("invalid href %q: %w", href, err)
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return url.URL{}, fmt.Errorf("unsupported scheme %q in %q", resolved.Scheme, href)
	}
	return Canonicalize(*resolved), nil
}
