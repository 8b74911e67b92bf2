package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/rohmanhakim/parkfetch/pkg/hashutil"
	"github.com/rohmanhakim/parkfetch/pkg/retry"
)

/*
Responsibilities

- Perform HTTP GET requests
- Apply headers and timeouts
- Classify responses into FetchError causes
- Record one fetch event per call, with a content hash of the body

The fetcher never parses content; it only returns bytes and metadata.
Whether a failed call is attempted again is decided by the RetryParam the
caller passes in; a single attempt is the default everywhere.
*/

type HttpFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	hashAlgo     hashutil.HashAlgo
}

func NewHttpFetcher(
	metadataSink metadata.MetadataSink,
	httpClient *http.Client,
	hashAlgo hashutil.HashAlgo,
) *HttpFetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HttpFetcher{
		metadataSink: metadataSink,
		httpClient:   httpClient,
		hashAlgo:     hashAlgo,
	}
}

func (h *HttpFetcher) Fetch(
	ctx context.Context,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HttpFetcher.Fetch"
	startTime := time.Now()

	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchParam)
	}
	result, attempts, err := retry.Retry(ctx, retryParam, fetchTask)

	duration := time.Since(startTime)

	var statusCode int
	var contentType string
	var contentHash string
	if err == nil {
		statusCode = result.Code()
		contentType = result.ContentType()
		contentHash, _ = hashutil.ShortHash(result.Body(), h.hashAlgo, 16)
		result.meta.attempts = attempts
	}

	h.metadataSink.RecordFetch(
		fetchParam.LoggableURL(),
		statusCode,
		duration,
		contentType,
		contentHash,
		attempts,
	)

	if err != nil {
		h.recordError(callerMethod, fetchParam, err)
		return FetchResult{}, err
	}

	return result, nil
}

func (h *HttpFetcher) recordError(callerMethod string, fetchParam FetchParam, err failure.ClassifiedError) {
	cause := metadata.CauseUnknown
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		cause = mapFetchErrorToMetadataCause(fetchError)
	}
	h.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fetchParam.LoggableURL()),
		},
	)
}

func (h *HttpFetcher) performFetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	requestURL := fetchParam.RequestURL()
	loggableURL := fetchParam.LoggableURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   "failed to create request",
			Retryable: false,
			Cause:     ErrCauseInvalidRequest,
			URL:       loggableURL,
		}
	}

	for key, value := range requestHeaders(fetchParam.userAgent, fetchParam.accept) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		// the transport error may echo the full URL, secrets included
		message := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			message = "request timed out"
		}
		return FetchResult{}, &FetchError{
			Message:   message,
			Retryable: ctx.Err() == nil,
			Cause:     ErrCauseNetworkFailure,
			URL:       loggableURL,
		}
	}
	defer resp.Body.Close()

	if classified := classifyStatus(resp.StatusCode, loggableURL); classified != nil {
		return FetchResult{}, classified
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAcceptedContent(contentType, fetchParam.accept) {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("expected %s, got content type %q", fetchParam.accept, contentType),
			Retryable: false,
			Cause:     ErrCauseContentTypeInvalid,
			URL:       loggableURL,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
			URL:       loggableURL,
		}
	}

	return FetchResult{
		url:  fetchParam.fetchUrl,
		body: body,
		meta: ResponseMeta{
			statusCode:  resp.StatusCode,
			contentType: contentType,
			attempts:    1,
		},
	}, nil
}

func classifyStatus(statusCode int, loggableURL string) *FetchError {
	switch {
	case statusCode >= 500:
		return &FetchError{
			Message:   fmt.Sprintf("server error: %d", statusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
			URL:       loggableURL,
		}
	case statusCode == http.StatusTooManyRequests:
		return &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
			URL:       loggableURL,
		}
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized:
		return &FetchError{
			Message:   fmt.Sprintf("access denied (%d)", statusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
			URL:       loggableURL,
		}
	case statusCode == http.StatusNotFound:
		return &FetchError{
			Message:   "page not found (404)",
			Retryable: false,
			Cause:     ErrCauseRequestNotFound,
			URL:       loggableURL,
		}
	case statusCode >= 400:
		return &FetchError{
			Message:   fmt.Sprintf("client error: %d", statusCode),
			Retryable: false,
			Cause:     ErrCauseRequestClientError,
			URL:       loggableURL,
		}
	case statusCode >= 300:
		// redirects are followed by http.Client; reaching here means the limit was hit
		return &FetchError{
			Message:   fmt.Sprintf("redirect error: %d", statusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
			URL:       loggableURL,
		}
	}
	return nil
}

func isAcceptedContent(contentType string, accept ContentKind) bool {
	contentType = strings.ToLower(contentType)
	switch accept {
	case ContentJSON:
		// some providers label JSON as javascript or plain text
		return strings.Contains(contentType, "json") ||
			strings.Contains(contentType, "javascript") ||
			strings.Contains(contentType, "text/plain")
	default:
		return strings.Contains(contentType, "text/html") ||
			strings.Contains(contentType, "application/xhtml")
	}
}

func requestHeaders(userAgent string, accept ContentKind) map[string]string {
	headers := map[string]string{
		"User-Agent":      userAgent,
		"Accept-Language": "en-US,en;q=0.5",
	}
	if accept == ContentJSON {
		headers["Accept"] = "application/json"
	} else {
		headers["Accept"] = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"
	}
	return headers
}
