package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cdr3q/internal/metrics"
	"cdr3q/internal/model"
)

// HTTPOptions configures an HTTPScorer. Zero values take defaults.
type HTTPOptions struct {
	RPS         float64
	Burst       int
	MaxAttempts int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// HTTPScorer asks an external pgen service for one sequence at a time:
// POST {baseURL}/pgen with {"chain","cdr3","v","j"}, answered by {"pgen": p}.
type HTTPScorer struct {
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

func NewHTTPScorer(baseURL string, opts HTTPOptions) *HTTPScorer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &HTTPScorer{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		limiter:     NewLimiter(opts.RPS, opts.Burst),
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
	}
}

type pgenRequest struct {
	Chain string `json:"chain"`
	CDR3  string `json:"cdr3"`
	V     string `json:"v,omitempty"`
	J     string `json:"j,omitempty"`
}

type pgenResponse struct {
	Pgen  *float64 `json:"pgen"`
	Error string   `json:"error,omitempty"`
}

func (c *HTTPScorer) Pgen(ctx context.Context, chain string, s model.Sequence) (float64, error) {
	if s.CDR3 == "" {
		return 0, errors.New("empty cdr3")
	}
	body, err := json.Marshal(pgenRequest{Chain: chain, CDR3: s.CDR3, V: s.V, J: s.J})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pgen", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var raw pgenResponse
	if resp.StatusCode >= 400 {
		_ = json.NewDecoder(resp.Body).Decode(&raw)
		if raw.Error != "" {
			return 0, fmt.Errorf("pgen service status %d: %s", resp.StatusCode, raw.Error)
		}
		return 0, fmt.Errorf("pgen service status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("decode pgen response: %w", err)
	}
	if raw.Pgen == nil {
		return 0, errors.New("pgen response without value")
	}
	p := *raw.Pgen
	if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("pgen service returned invalid probability %g", p)
	}
	return p, nil
}

func (c *HTTPScorer) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = b
		}
		resp, err := c.httpClient.Do(r)
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				metrics.IncAPIRetry("pgen")
				wait := retryAfter(resp.Header.Get("Retry-After"), backoff)
				_ = resp.Body.Close()
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
				if attempt == c.maxAttempts {
					break
				}
				// jitter +/-20%
				jitter := time.Duration(float64(wait) * 0.2)
				if jitter > 0 {
					wait = wait - jitter + time.Duration(time.Now().UnixNano()%int64(2*jitter))
				}
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				continue
			}
			return resp, nil
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("request failed after %d attempts: %v", c.maxAttempts, lastErr)
}

// retryAfter reads a Retry-After header in seconds or HTTP-date form.
func retryAfter(h string, def time.Duration) time.Duration {
	if h == "" {
		return def
	}
	if secs, err := strconv.Atoi(h); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return def
}
