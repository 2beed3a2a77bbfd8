package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/logging"
)

const defaultBackoff = 500 * time.Millisecond

// doRequestWithRetry sends a GET and retries on transport errors, 429 and
// 5xx until maxRetries attempts are used. Retry-After overrides the
// exponential backoff.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	attempts := max(c.maxRetries, 1)
	backoff := c.baseBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	log := logging.Component("spotify")
	ctx := req.Context()

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("request canceled: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		wait, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		last := attempt == attempts-1
		if err != nil {
			if last {
				return nil, fmt.Errorf("request failed after %d attempts: %v: %w", attempts, err, domain.ErrTransientAPI)
			}
			log.Warn().Err(err).Int("attempt", attempt+1).Int("max", attempts).Msg("retrying request")
		} else {
			if last {
				// Hand the final response back so the caller reports its status.
				return resp, nil
			}
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Int("max", attempts).Msg("retrying request")
			_ = resp.Body.Close()
		}

		delay := backoff * time.Duration(1<<attempt)
		if wait > 0 {
			delay = wait
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, domain.ErrTransientAPI)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
