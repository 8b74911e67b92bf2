// Package record holds the canonical shapes produced by the fetch pipeline.
//
// Every field of a Site or NearbyPlace is judged on its own: an absent or
// empty source value becomes that field's sentinel, and no field is ever
// empty after construction.
package record

import (
	"fmt"
	"strings"
)

const (
	SentinelCategory = "no category"
	SentinelName     = "no name"
	SentinelAddress  = "no address"
	SentinelZipcode  = "no zipcode"
	SentinelPhone    = "no phone"
	SentinelCity     = "no city"
)

// Field is the result of one optional extraction.
// OK is false when the structural marker or JSON path was absent.
type Field struct {
	Value string
	OK    bool
}

// Found wraps an extracted value.
func Found(value string) Field {
	return Field{Value: value, OK: true}
}

// Missing marks a failed extraction.
func Missing() Field {
	return Field{}
}

// NormalizeField returns sentinel when the extraction failed or produced
// an empty string, else the raw value.
func NormalizeField(raw string, ok bool, sentinel string) string {
	if !ok || raw == "" {
		return sentinel
	}
	return raw
}

func (f Field) Or(sentinel string) string {
	return NormalizeField(f.Value, f.OK, sentinel)
}

// SiteFields is the raw, per-field extraction result for a site detail page.
type SiteFields struct {
	Category Field
	Name     Field
	Address  Field
	Zipcode  Field
	Phone    Field
}

// Site is a national park site. Construct it with NewSite or DecodeSite.
type Site struct {
	category string
	name     string
	address  string
	zipcode  string
	phone    string
}

func NewSite(fields SiteFields) Site {
	return Site{
		category: fields.Category.Or(SentinelCategory),
		name:     fields.Name.Or(SentinelName),
		address:  fields.Address.Or(SentinelAddress),
		zipcode:  fields.Zipcode.Or(SentinelZipcode),
		phone:    fields.Phone.Or(SentinelPhone),
	}
}

func (s Site) Category() string { return s.category }
func (s Site) Name() string     { return s.name }
func (s Site) Address() string  { return s.address }
func (s Site) Zipcode() string  { return s.zipcode }
func (s Site) Phone() string    { return s.phone }

// HasZipcode reports whether the zipcode came from the source page.
func (s Site) HasZipcode() bool {
	return s.zipcode != SentinelZipcode
}

// Describe renders "{name} ({category}): {address} {zipcode}".
func (s Site) Describe() string {
	return fmt.Sprintf("%s (%s): %s %s", s.name, s.category, s.address, s.zipcode)
}

// NearbyPlace is one point of interest returned by a proximity search.
type NearbyPlace struct {
	name     string
	category string
	address  string
	city     string
}

func NewNearbyPlace(name, category, address, city Field) NearbyPlace {
	return NearbyPlace{
		name:     name.Or(SentinelName),
		category: category.Or(SentinelCategory),
		address:  address.Or(SentinelAddress),
		city:     city.Or(SentinelCity),
	}
}

func (p NearbyPlace) Name() string     { return p.name }
func (p NearbyPlace) Category() string { return p.category }
func (p NearbyPlace) Address() string  { return p.address }
func (p NearbyPlace) City() string     { return p.city }

// Describe renders "- {name} ({category}): {address}, {city}".
func (p NearbyPlace) Describe() string {
	return fmt.Sprintf("- %s (%s): %s, %s", p.name, p.category, p.address, p.city)
}

// JoinAddress joins locality and region as "locality, region".
// Both parts are required; a missing part fails the whole address.
func JoinAddress(locality, region Field) Field {
	if !locality.OK || !region.OK {
		return Missing()
	}
	l := strings.TrimSpace(locality.Value)
	r := strings.TrimSpace(region.Value)
	if l == "" || r == "" {
		return Missing()
	}
	return Found(l + ", " + r)
}
