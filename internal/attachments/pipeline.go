// Package attachments retrieves declared attachments and stores them
// durably: bounded-timeout download, content hashing, deterministic
// storage keys, independent per-attachment outcomes.
package attachments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
	"github.com/custodia-labs/annsync/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driven.AttachmentResolver = (*Pipeline)(nil)

const (
	// defaultFetchTimeout bounds one attachment download.
	defaultFetchTimeout = 45 * time.Second

	// defaultConcurrency bounds parallel fetches for one parent.
	defaultConcurrency = 4

	// maxAttachmentBytes caps one attachment's size. Larger responses
	// are treated as fetch failures.
	maxAttachmentBytes = 64 << 20

	// keyPrefix is the namespace under which objects are stored.
	keyPrefix = "announcements"
)

// Conservative request rate against upstream archives.
var defaultRate = rate.NewLimiter(rate.Limit(8), 16)

// allowedMIMEPrefixes maps an attachment kind to the content-type
// prefixes accepted for it. A response outside the expectation for its
// kind is a fetch failure, not a stored object.
var allowedMIMEPrefixes = map[domain.AttachmentKind][]string{
	domain.KindPrimaryDocument: {"application/pdf", "application/octet-stream"},
	domain.KindStructuredData:  {"application/xml", "text/xml", "application/json", "application/zip"},
	domain.KindMedia:           {"image/", "audio/", "video/"},
}

// Pipeline fetches, hashes and durably stores attachments.
// Safe for concurrent use across records.
type Pipeline struct {
	client      *http.Client
	blob        driven.BlobStore
	limiter     *rate.Limiter
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient replaces the HTTP client. Useful for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

// WithConcurrency bounds parallel fetches for one parent.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithRateLimiter replaces the request rate limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// New creates an attachment pipeline storing into blob.
func New(blob driven.BlobStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:      &http.Client{Timeout: defaultFetchTimeout},
		blob:        blob,
		limiter:     defaultRate,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve fetches every declared attachment of ann concurrently and
// returns one Attachment per declaration. Failures are independent: a
// failed attachment is returned as fetch-failed and never blocks the
// others or the parent. Resolve returns only after all attempts settle.
func (p *Pipeline) Resolve(ctx context.Context, ann *domain.Announcement) []domain.Attachment {
	declared := ann.DeclaredAttachments
	if len(declared) == 0 {
		return nil
	}

	results := make([]domain.Attachment, len(declared))
	sem := make(chan struct{}, p.concurrency)

	var wg sync.WaitGroup
	for i, decl := range declared {
		wg.Add(1)
		go func(i int, decl domain.DeclaredAttachment) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = p.fetchOne(ctx, ann, decl)
		}(i, decl)
	}
	wg.Wait()

	return results
}

// fetchOne runs the full per-attachment pipeline: download, validate,
// hash, upload. Every failure path returns a fetch-failed attachment
// carrying the reason; fetched status is only claimed after the blob
// store confirmed durable storage.
func (p *Pipeline) fetchOne(ctx context.Context, ann *domain.Announcement, decl domain.DeclaredAttachment) domain.Attachment {
	att := domain.Attachment{
		AnnouncementKey: ann.IdentityKey,
		SourceURL:       decl.URL,
		Kind:            decl.Kind,
		Status:          domain.FetchStatusFailed,
	}

	if err := p.limiter.Wait(ctx); err != nil {
		att.FetchError = err.Error()
		return att
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, decl.URL, nil)
	if err != nil {
		att.FetchError = fmt.Sprintf("build request: %v", err)
		return att
	}

	resp, err := p.client.Do(req)
	if err != nil {
		att.FetchError = fmt.Sprintf("fetch: %v", err)
		return att
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		att.FetchError = fmt.Sprintf("fetch: unexpected status %d", resp.StatusCode)
		return att
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
	if err != nil {
		att.FetchError = fmt.Sprintf("read body: %v", err)
		return att
	}
	if len(data) > maxAttachmentBytes {
		att.FetchError = fmt.Sprintf("attachment exceeds %d bytes", maxAttachmentBytes)
		return att
	}

	mimeType := detectMIME(resp.Header.Get("Content-Type"), data)
	if !mimeAllowed(decl.Kind, mimeType) {
		att.FetchError = fmt.Sprintf("content type %q not allowed for kind %s", mimeType, decl.Kind)
		return att
	}

	sum := sha256.Sum256(data)
	key := StorageKey(ann, decl)

	storedURL, err := p.blob.Put(ctx, key, data, mimeType)
	if err != nil {
		// Bytes were fetched but not durably stored; must not claim
		// fetched status.
		att.FetchError = fmt.Sprintf("store: %v", err)
		return att
	}

	logger.Debug("Stored attachment %s (%d bytes) at %s", decl.URL, len(data), key)

	size := int64(len(data))
	att.Status = domain.FetchStatusFetched
	att.ContentHash = hex.EncodeToString(sum[:])
	att.SizeBytes = &size
	att.MIMEType = mimeType
	att.StorageKey = key
	att.StorageURL = storedURL
	att.FetchError = ""
	return att
}

// StorageKey derives the deterministic object key for one attachment:
// a date-partitioned path incorporating the parent identity and kind.
// The key is a pure function of the record so re-ingesting the same
// record always addresses the same object. Records without any usable
// date land in a fixed undated partition rather than a wall-clock one.
func StorageKey(ann *domain.Announcement, decl domain.DeclaredAttachment) string {
	partition := "undated"
	switch {
	case ann.DisseminatedAt != nil:
		partition = ann.DisseminatedAt.UTC().Format("2006/01/02")
	case ann.ReceivedAt != nil:
		partition = ann.ReceivedAt.UTC().Format("2006/01/02")
	}

	return fmt.Sprintf("%s/%s/%s/%s/%s-%s",
		keyPrefix,
		partition,
		ann.IdentityKey,
		decl.Kind,
		urlToken(decl.URL),
		baseName(decl.URL),
	)
}

// urlToken is a short stable digest of the source URL. It keeps two
// attachments of the same kind whose URLs share a basename on distinct
// object keys.
func urlToken(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:4])
}

// baseName extracts a safe object basename from the source URL.
func baseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "attachment"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "attachment"
	}
	return name
}

// detectMIME prefers the declared content type, falling back to
// sniffing the payload.
func detectMIME(header string, data []byte) string {
	if header != "" {
		if i := strings.IndexByte(header, ';'); i >= 0 {
			header = header[:i]
		}
		return strings.TrimSpace(strings.ToLower(header))
	}
	return http.DetectContentType(data)
}

// mimeAllowed checks the observed content type against the expectation
// for the attachment kind.
func mimeAllowed(kind domain.AttachmentKind, mimeType string) bool {
	prefixes, ok := allowedMIMEPrefixes[kind]
	if !ok {
		return false
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
