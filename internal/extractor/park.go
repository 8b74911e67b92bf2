package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/internal/record"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/rohmanhakim/parkfetch/pkg/urlutil"
	"golang.org/x/net/html"
)

/*
Responsibilities
- Parse park service HTML into a DOM tree
- Locate the structural markers of the index, listing and detail pages
- Resolve links against the page they were found on

Page-level markers (the state navigation, the site list) are required and
their absence is an error. Detail fields are optional one by one: a missing
marker yields record.Missing() for that field only and is recorded, never
returned.
*/

type ParkExtractor struct {
	metadataSink metadata.MetadataSink
}

func NewParkExtractor(metadataSink metadata.MetadataSink) ParkExtractor {
	return ParkExtractor{
		metadataSink: metadataSink,
	}
}

// StateIndex returns lowercased state name -> state page URL.
func (p *ParkExtractor) StateIndex(
	pageUrl url.URL,
	htmlByte []byte,
) (map[string]string, failure.ClassifiedError) {
	doc, err := parseDocument(htmlByte)
	if err != nil {
		return nil, p.fail("ParkExtractor.StateIndex", pageUrl, err)
	}

	states := make(map[string]string)
	doc.Find(selectorStateLinks).Each(func(_ int, link *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(link.Text()))
		href, _ := link.Attr("href")
		if name == "" {
			return
		}
		stateUrl, resolveErr := urlutil.Resolve(pageUrl, href)
		if resolveErr != nil {
			p.recordSkippedLink("ParkExtractor.StateIndex", pageUrl, resolveErr)
			return
		}
		states[name] = stateUrl.String()
	})

	if len(states) == 0 {
		return nil, p.fail("ParkExtractor.StateIndex", pageUrl, &ExtractionError{
			Message:   fmt.Sprintf("no state links under %q", selectorStateLinks),
			Retryable: false,
			Cause:     ErrCauseMarkerNotFound,
		})
	}
	return states, nil
}

// SiteLinks returns the site entries of a state listing page in page order.
// A listing without entries is valid and yields an empty slice.
func (p *ParkExtractor) SiteLinks(
	pageUrl url.URL,
	htmlByte []byte,
) ([]SiteLink, failure.ClassifiedError) {
	doc, err := parseDocument(htmlByte)
	if err != nil {
		return nil, p.fail("ParkExtractor.SiteLinks", pageUrl, err)
	}

	if doc.Find(selectorSiteList).Length() == 0 {
		return nil, p.fail("ParkExtractor.SiteLinks", pageUrl, &ExtractionError{
			Message:   fmt.Sprintf("listing marker %q not found", selectorSiteList),
			Retryable: false,
			Cause:     ErrCauseMarkerNotFound,
		})
	}

	links := []SiteLink{}
	doc.Find(selectorSiteLinks).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		siteUrl, resolveErr := urlutil.Resolve(pageUrl, href)
		if resolveErr != nil {
			p.recordSkippedLink("ParkExtractor.SiteLinks", pageUrl, resolveErr)
			return
		}
		links = append(links, SiteLink{
			Name: strings.TrimSpace(link.Text()),
			URL:  siteUrl,
		})
	})
	return links, nil
}

// SiteDetail extracts the five site fields independently.
// Only an unparseable document is an error.
func (p *ParkExtractor) SiteDetail(
	pageUrl url.URL,
	htmlByte []byte,
) (record.SiteFields, failure.ClassifiedError) {
	doc, err := parseDocument(htmlByte)
	if err != nil {
		return record.SiteFields{}, p.fail("ParkExtractor.SiteDetail", pageUrl, err)
	}

	hero := doc.Find(selectorHeroTitle).First()
	footer := doc.Find(selectorFooter).First()

	fields := record.SiteFields{
		Name:     firstText(doc.Find(selectorName)),
		Category: firstText(hero.Find(selectorCategory)),
		Address: record.JoinAddress(
			firstText(footer.Find(selectorLocality)),
			firstText(footer.Find(selectorRegion)),
		),
		Zipcode: firstText(footer.Find(selectorPostalCode)),
		Phone:   firstText(footer.Find(selectorTelephone)),
	}

	p.recordMissingFields(pageUrl, fields)
	return fields, nil
}

func (p *ParkExtractor) recordMissingFields(pageUrl url.URL, fields record.SiteFields) {
	named := []struct {
		name  string
		field record.Field
	}{
		{"name", fields.Name},
		{"category", fields.Category},
		{"address", fields.Address},
		{"zipcode", fields.Zipcode},
		{"phone", fields.Phone},
	}
	for _, n := range named {
		if n.field.OK && n.field.Value != "" {
			continue
		}
		p.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"ParkExtractor.SiteDetail",
			metadata.CauseContentInvalid,
			fmt.Sprintf("field %s not found, using sentinel", n.name),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, pageUrl.String()),
				metadata.NewAttr(metadata.AttrField, n.name),
			},
		)
	}
}

func (p *ParkExtractor) recordSkippedLink(action string, pageUrl url.URL, err error) {
	p.metadataSink.RecordError(
		time.Now(),
		"extractor",
		action,
		metadata.CauseContentInvalid,
		fmt.Sprintf("skipped link: %v", err),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, pageUrl.String()),
		},
	)
}

func (p *ParkExtractor) fail(action string, pageUrl url.URL, err *ExtractionError) *ExtractionError {
	p.metadataSink.RecordError(
		time.Now(),
		"extractor",
		action,
		mapExtractionErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, pageUrl.String()),
		},
	)
	return err
}

// firstText is the trimmed text of the first match, or Missing.
func firstText(selection *goquery.Selection) record.Field {
	if selection.Length() == 0 {
		return record.Missing()
	}
	return record.Found(strings.TrimSpace(selection.First().Text()))
}

func parseDocument(htmlByte []byte) (*goquery.Document, *ExtractionError) {
	root, err := html.Parse(bytes.NewReader(htmlByte))
	if err != nil {
		return nil, &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}
	return goquery.NewDocumentFromNode(root), nil
}
