package extractor

// Structural markers of the park service pages. Each selector is matched
// independently; a miss on one never affects another.
const (
	// state index page
	selectorStateLinks = ".SearchBar-keywordSearch a"

	// state listing page
	selectorSiteList  = "#list_parks"
	selectorSiteLinks = "#list_parks > li h3 a"

	// site detail page
	selectorHeroTitle  = ".Hero-titleContainer"
	selectorName       = ".Hero-titleContainer a"
	selectorCategory   = ".Hero-designation"
	selectorFooter     = ".ParkFooter-contact"
	selectorLocality   = "[itemprop='addressLocality']"
	selectorRegion     = "[itemprop='addressRegion']"
	selectorPostalCode = "[itemprop='postalCode']"
	selectorTelephone  = "[itemprop='telephone']"
)

// JSON paths of a places search response.
const (
	pathStatusCode    = "info.statuscode"
	pathStatusMessage = "info.messages"
	pathResults       = "searchResults"

	pathPlaceName     = "name"
	pathPlaceCategory = "fields.group_sic_code_name"
	pathPlaceAddress  = "fields.address"
	pathPlaceCity     = "fields.city"
)
