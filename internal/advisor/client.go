// Package advisor fetches a per-ticker market sentiment snapshot from an
// OpenAI-compatible chat endpoint and shapes it for the trade journal.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"riskbook/internal/journal"
	"riskbook/internal/logger"
	"riskbook/internal/pkg/jsonutil"
)

// ErrUnavailable is returned for any terminal advisory failure: exhausted
// retries, malformed payloads, or an open circuit. Callers keep whatever
// sentiment state they already had.
var ErrUnavailable = errors.New("sentiment analysis unavailable")

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	backoffBase     = 800 * time.Millisecond
	backoffCap      = 8 * time.Second
)

const systemPrompt = "You are a market sentiment analyst. You answer with a single JSON object and nothing else."

// Snapshot is one advisory result for a ticker.
type Snapshot struct {
	Ticker    string              `json:"ticker"`
	Summary   string              `json:"summary"`
	Sources   []journal.SourceRef `json:"sources,omitempty"`
	FetchedAt time.Time           `json:"fetchedAt"`
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int // total attempt cap, not extra retries
	HTTPClient *http.Client
}

// Fetch requests a sentiment summary for ticker. The returned int is the
// number of attempts spent, for the advisory log. Only HTTP 429/500/502/503/
// 504 and transport errors are retried; everything else fails immediately.
func (c *Client) Fetch(ctx context.Context, ticker string) (Snapshot, int, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxAttempts := c.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = defaultAttempts
	}
	httpc := c.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: timeout}
	}
	url := endpointURL(c.BaseURL)
	body, err := json.Marshal(map[string]any{
		"model":       c.Model,
		"temperature": 0.2,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt(ticker)},
		},
	})
	if err != nil {
		return Snapshot{}, 0, fmt.Errorf("%w: encoding request: %v", ErrUnavailable, err)
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attempts = attempt + 1
		if attempt == 0 {
			logger.Debugf("[advisor] POST %s model=%s ticker=%s auth=%s", url, c.Model, ticker, maskKey(c.APIKey))
		}
		content, status, retryAfter, err := c.post(ctx, httpc, url, body)
		if err == nil && status/100 == 2 {
			snap, perr := parseSnapshot(ticker, content)
			if perr != nil {
				// Malformed payloads are terminal; a retry would burn quota
				// on the same answer.
				return Snapshot{}, attempts, fmt.Errorf("%w: %v", ErrUnavailable, perr)
			}
			return snap, attempts, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status=%d", status)
		}
		if err == nil && !retryableStatus(status) {
			return Snapshot{}, attempts, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
		}
		if attempt == maxAttempts-1 {
			break
		}
		wait := retryAfter
		if wait <= 0 {
			wait = backoffBase << attempt
			if wait > backoffCap {
				wait = backoffCap
			}
		}
		logger.Debugf("[advisor] attempt %d/%d failed (%v), retrying in %s", attempts, maxAttempts, lastErr, wait)
		select {
		case <-ctx.Done():
			return Snapshot{}, attempts, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(wait):
		}
	}
	return Snapshot{}, attempts, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// post runs one request and extracts the first choice's content. A non-2xx
// status is not an error here; the caller decides whether to retry it.
func (c *Client) post(ctx context.Context, httpc *http.Client, url string, body []byte) (content string, status int, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return "", 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		if msg := strings.TrimSpace(eresp.Error.Message); msg != "" {
			logger.Debugf("[advisor] upstream error: %s", msg)
		}
		return "", resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), nil
	}
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if derr := json.NewDecoder(resp.Body).Decode(&r); derr != nil {
		return "", resp.StatusCode, 0, derr
	}
	if len(r.Choices) == 0 {
		return "", resp.StatusCode, 0, errors.New("empty choices")
	}
	return r.Choices[0].Message.Content, resp.StatusCode, 0, nil
}

func parseSnapshot(ticker, content string) (Snapshot, error) {
	obj, ok := jsonutil.ExtractObject(content)
	if !ok {
		return Snapshot{}, errors.New("no JSON object in model output")
	}
	summary := strings.TrimSpace(gjson.Get(obj, "summary").String())
	if summary == "" {
		return Snapshot{}, errors.New("missing summary in model output")
	}
	snap := Snapshot{
		Ticker:    ticker,
		Summary:   summary,
		FetchedAt: time.Now().UTC(),
	}
	gjson.Get(obj, "sources").ForEach(func(_, src gjson.Result) bool {
		title := strings.TrimSpace(src.Get("title").String())
		uri := strings.TrimSpace(src.Get("uri").String())
		if title == "" && uri == "" {
			return true
		}
		snap.Sources = append(snap.Sources, journal.SourceRef{Title: title, URI: uri})
		return true
	})
	return snap, nil
}

func userPrompt(ticker string) string {
	return fmt.Sprintf(`Summarize the current market sentiment for the stock ticker %q in two or three sentences. Respond with exactly this JSON shape: {"summary": "...", "sources": [{"title": "...", "uri": "..."}]}. Use an empty sources array if you cannot cite any.`, ticker)
}

// endpointURL normalizes a configured base URL so a full /chat/completions
// path in config does not end up doubled.
func endpointURL(base string) string {
	url := strings.TrimRight(base, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func parseRetryAfter(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func maskKey(key string) string {
	if key == "" {
		return "none"
	}
	tail := key
	if len(key) > 4 {
		tail = key[len(key)-4:]
	}
	return "****" + tail
}
