package pipeline

import (
	"fmt"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
)

type Operation string

const (
	OpStateIndex    Operation = "state index"
	OpStateListing  Operation = "state listing"
	OpSiteDetail    Operation = "site detail"
	OpNearbyPlaces  Operation = "nearby places"
	OpStoreResponse Operation = "store response"
)

// FetchFailedError is returned when a remote page or search could not be
// turned into a result. Cause is the fetcher, extractor or cache error.
// The URL never carries credentials.
type FetchFailedError struct {
	Operation Operation
	URL       string
	Cause     failure.ClassifiedError
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch failed: %s %s: %v", e.Operation, e.URL, e.Cause)
}

func (e *FetchFailedError) Severity() failure.Severity {
	if e.Cause == nil {
		return failure.SeverityFatal
	}
	return e.Cause.Severity()
}

func (e *FetchFailedError) Unwrap() error {
	return e.Cause
}

// InvalidSelectionError rejects a caller choice before any I/O happens.
type InvalidSelectionError struct {
	Message   string
	Selection string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection %q: %s", e.Selection, e.Message)
}

func (e *InvalidSelectionError) Severity() failure.Severity {
	return failure.SeverityFatal
}

// mapPipelineErrorToMetadataCause maps pipeline-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapPipelineErrorToMetadataCause(err failure.ClassifiedError) metadata.ErrorCause {
	switch err.(type) {
	case *InvalidSelectionError:
		return metadata.CauseInvariantViolation
	case *FetchFailedError:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
