// Package jsonfeed implements the driven.RecordSource port for HTTP
// endpoints that serve announcement records as JSON.
//
// The adapter owns only the retrieval mechanics: it requests the
// source's feed URL with the window as query parameters, decodes the
// response and streams each record as an open key-value map. All
// field interpretation belongs to the record normaliser.
package jsonfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
	"github.com/custodia-labs/annsync/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.RecordSource = (*Source)(nil)

const (
	// defaultTimeout bounds one feed request.
	defaultTimeout = 60 * time.Second

	// maxResponseBytes caps a feed response to keep a misbehaving
	// endpoint from exhausting memory.
	maxResponseBytes = 256 << 20
)

// recordListKeys are the envelope keys under which feeds commonly nest
// their record arrays when the response is not a bare JSON array.
var recordListKeys = []string{"data", "records", "announcements", "results", "Table", "rows"}

// Source fetches raw records from a windowed JSON feed over HTTP.
type Source struct {
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient replaces the HTTP client. Useful for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) { s.client = client }
}

// WithRateLimiter replaces the request rate limiter.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(s *Source) { s.limiter = limiter }
}

// New creates a JSON feed record source.
func New(opts ...Option) *Source {
	s := &Source{
		client:  &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(2, 4),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch requests the feed for the window and streams the decoded
// records. A request or decode failure is terminal and arrives on the
// error channel; both channels close when the fetch completes.
func (s *Source) Fetch(ctx context.Context, source domain.Source, window domain.Window) (<-chan domain.RawRecord, <-chan error) {
	recs := make(chan domain.RawRecord)
	errs := make(chan error, 1)

	go func() {
		defer close(recs)
		defer close(errs)

		records, err := s.fetchWindow(ctx, source, window)
		if err != nil {
			errs <- err
			return
		}
		logger.Debug("Feed %s returned %d records", source.Name, len(records))

		for _, fields := range records {
			select {
			case <-ctx.Done():
				return
			case recs <- domain.RawRecord{SourceName: source.Name, Fields: fields}:
			}
		}
	}()

	return recs, errs
}

// fetchWindow performs one feed request and decodes the record list.
func (s *Source) fetchWindow(ctx context.Context, source domain.Source, window domain.Window) ([]map[string]any, error) {
	if source.FeedURL == "" {
		return nil, fmt.Errorf("source %q has no feed URL: %w", source.Name, domain.ErrInvalidInput)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feedURL, err := url.Parse(source.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("parsing feed URL: %w", err)
	}
	query := feedURL.Query()
	query.Set("from", window.Start.UTC().Format(time.RFC3339))
	query.Set("to", window.End.UTC().Format(time.RFC3339))
	feedURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading feed response: %w", err)
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decoding feed response: %w", err)
	}
	return records, nil
}

// decodeRecords accepts either a bare JSON array of objects or an
// object wrapping the array under a well-known envelope key.
func decodeRecords(body []byte) ([]map[string]any, error) {
	var asArray []map[string]any
	if err := json.Unmarshal(body, &asArray); err == nil {
		return asArray, nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(body, &asObject); err != nil {
		return nil, fmt.Errorf("response is neither an array nor an object: %w", err)
	}

	for _, key := range recordListKeys {
		raw, ok := asObject[key]
		if !ok {
			continue
		}
		var records []map[string]any
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("envelope key %q is not a record array: %w", key, err)
		}
		return records, nil
	}

	return nil, fmt.Errorf("no record array found in response")
}
