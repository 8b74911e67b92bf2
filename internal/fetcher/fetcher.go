package fetcher

import (
	"context"

	"github.com/rohmanhakim/parkfetch/pkg/failure"
	"github.com/rohmanhakim/parkfetch/pkg/retry"
)

type Fetcher interface {
	Fetch(
		ctx context.Context,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}
