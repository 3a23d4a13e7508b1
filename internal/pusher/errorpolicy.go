package pusher

import (
	"math/rand"
	"time"

	"github.com/aras-services/gsa-adaptor/internal/apperr"
)

// ErrorHandler is the pure per-call retry policy callback: given the error
// kind and the 1-origin attempt count within the current batch, decide
// whether to retry and, if so, how long to back off first.
type ErrorHandler func(kind apperr.Kind, attempt int) (retry bool, backoff time.Duration)

// DefaultErrorHandler returns an ErrorHandler with exponential backoff from
// ~8s to a 1h cap, giving up after maxAttempts. maxAttempts <= 0 means
// "retry forever".
func DefaultErrorHandler(maxAttempts int) ErrorHandler {
	return func(kind apperr.Kind, attempt int) (bool, time.Duration) {
		if maxAttempts > 0 && attempt >= maxAttempts {
			return false, 0
		}
		return true, backoffFor(attempt)
	}
}

const (
	minBackoff = 8 * time.Second
	maxBackoff = time.Hour
)

// backoffFor doubles from minBackoff for every attempt past the first,
// capped at maxBackoff, with up to 20% jitter so that many failing batches
// do not retry in lockstep.
func backoffFor(attempt int) time.Duration {
	d := minBackoff
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	return d + jitter
}
