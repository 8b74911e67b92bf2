package extractor

import (
	"fmt"
	"strings"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/internal/record"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/tidwall/gjson"
)

// ValidateProximity checks a places search body before it is cached:
// it must be JSON and must not carry a non-zero provider status code.
func (p *ParkExtractor) ValidateProximity(zipcode string, body []byte) failure.ClassifiedError {
	if err := validateProximity(body); err != nil {
		p.metadataSink.RecordError(
			time.Now(),
			"extractor",
			"ParkExtractor.ValidateProximity",
			mapExtractionErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrKey, zipcode),
			},
		)
		return err
	}
	return nil
}

func validateProximity(body []byte) *ExtractionError {
	if !gjson.ValidBytes(body) {
		return &ExtractionError{
			Message:   "places response is not valid JSON",
			Retryable: false,
			Cause:     ErrCauseNotJSON,
		}
	}
	if !gjson.ParseBytes(body).IsObject() {
		return &ExtractionError{
			Message:   "places response is not a JSON object",
			Retryable: false,
			Cause:     ErrCauseNotJSON,
		}
	}
	status := gjson.GetBytes(body, pathStatusCode)
	if status.Exists() && status.Int() != 0 {
		messages := []string{}
		for _, m := range gjson.GetBytes(body, pathStatusMessage).Array() {
			messages = append(messages, m.String())
		}
		return &ExtractionError{
			Message:   fmt.Sprintf("status %d: %s", status.Int(), strings.Join(messages, "; ")),
			Retryable: false,
			Cause:     ErrCauseProviderRejected,
		}
	}
	return nil
}

// NearbyPlaces renders each searchResults entry. Every field is looked up
// on its own path; an absent or non-string value becomes its sentinel.
// A body without searchResults has no places.
func NearbyPlaces(body []byte) []record.NearbyPlace {
	results := gjson.GetBytes(body, pathResults)
	if !results.IsArray() {
		return []record.NearbyPlace{}
	}

	places := make([]record.NearbyPlace, 0, len(results.Array()))
	results.ForEach(func(_, entry gjson.Result) bool {
		places = append(places, record.NewNearbyPlace(
			stringField(entry, pathPlaceName),
			stringField(entry, pathPlaceCategory),
			stringField(entry, pathPlaceAddress),
			stringField(entry, pathPlaceCity),
		))
		return true
	})
	return places
}

func stringField(entry gjson.Result, path string) record.Field {
	value := entry.Get(path)
	if !value.Exists() || value.Type != gjson.String {
		return record.Missing()
	}
	return record.Found(strings.TrimSpace(value.String()))
}
