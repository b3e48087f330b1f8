package record

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.RecordNormaliser = (*Normaliser)(nil)

// Fallback-key lists per canonical field. Sources publish the same
// information under different names; lookup is ordered, first hit wins.
var (
	sourceIDKeys     = []string{"source_id", "news_id", "newsid", "seq_id", "id"}
	entityCodeKeys   = []string{"entity_code", "symbol", "scrip_code", "scrip_cd", "security_code"}
	entityNameKeys   = []string{"entity_name", "company_name", "company", "sm_name", "slongname"}
	categoryKeys     = []string{"category", "news_cat", "categoryname"}
	subcategoryKeys  = []string{"subcategory", "news_sub_cat", "subcatname"}
	headlineKeys     = []string{"headline", "title", "subject", "news_sub", "newssub"}
	bodyTextKeys     = []string{"body_text", "details", "descriptor", "more", "attchmnt_text"}
	bodyHTMLKeys     = []string{"body_html", "html", "news_body", "body"}
	disseminatedKeys = []string{"disseminated_at", "dissem_dt", "news_dt", "an_dt", "date_time", "dt_tm"}
	receivedKeys     = []string{"received_at", "recv_dt", "exchdisstime", "exchange_received_time"}
)

// attachmentKeyKinds maps attachment-bearing field names to the kind
// inferred for URLs found under them. Evaluated in order.
var attachmentKeyKinds = []struct {
	keys []string
	kind domain.AttachmentKind
}{
	{[]string{"attachment_url", "pdf_url", "attchmnt_file", "ns_url", "nsurl", "fileurl"}, domain.KindPrimaryDocument},
	{[]string{"xbrl_url", "xml_url", "xbrl_file"}, domain.KindStructuredData},
	{[]string{"media_url", "image_url", "audio_url", "video_url"}, domain.KindMedia},
}

// Normaliser maps raw heterogeneous records onto the canonical
// Announcement shape. It is a pure transform: no I/O, no shared state.
type Normaliser struct {
	loc *time.Location
}

// New creates a record normaliser targeting the given timezone.
// Naive upstream timestamps are assumed to already be in loc.
func New(loc *time.Location) *Normaliser {
	if loc == nil {
		loc = time.UTC
	}
	return &Normaliser{loc: loc}
}

// Normalise converts one raw record into an Announcement.
// Returns domain.ErrRecordRejected only when the record has no usable
// headline/body and no identity-contributing field. Every other defect
// degrades to a null/empty field.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawRecord) (*domain.Announcement, error) {
	if raw == nil || len(raw.Fields) == 0 {
		return nil, fmt.Errorf("empty record: %w", domain.ErrRecordRejected)
	}

	headline := stringField(raw.Fields, headlineKeys)
	bodyHTML := stringField(raw.Fields, bodyHTMLKeys)
	bodyText := stringField(raw.Fields, bodyTextKeys)
	if bodyText == "" && bodyHTML != "" {
		bodyText = StripHTML(bodyHTML)
	}

	sourceID := stringField(raw.Fields, sourceIDKeys)
	entityCode := stringField(raw.Fields, entityCodeKeys)
	declared := declaredAttachments(raw.Fields)

	// A record with no text and nothing to derive an identity from
	// cannot be stored meaningfully.
	if headline == "" && bodyText == "" && sourceID == "" && len(declared) == 0 {
		return nil, fmt.Errorf("no headline, body or identity field: %w", domain.ErrRecordRejected)
	}

	rawDisseminated := stringField(raw.Fields, disseminatedKeys)
	rawReceived := stringField(raw.Fields, receivedKeys)

	// Timestamp failures are independent: one bad field nulls only itself.
	var disseminatedAt, receivedAt *time.Time
	if t, ok := ParseTimestamp(rawDisseminated, n.loc); ok {
		disseminatedAt = &t
	}
	if t, ok := ParseTimestamp(rawReceived, n.loc); ok {
		receivedAt = &t
	}

	var latency *float64
	if disseminatedAt != nil && receivedAt != nil {
		secs := disseminatedAt.Sub(*receivedAt).Seconds()
		if secs >= 0 {
			latency = &secs
		}
	}

	var primaryURL string
	for _, att := range declared {
		if att.Kind == domain.KindPrimaryDocument {
			primaryURL = att.URL
			break
		}
	}

	identity := ResolveIdentity(sourceID, IdentityTuple{
		PrimaryURL:   primaryURL,
		Headline:     headline,
		Disseminated: rawDisseminated,
		EntityCode:   entityCode,
	})

	matchText := joinText(headline, bodyText)

	return &domain.Announcement{
		IdentityKey:              identity,
		SourceName:               raw.SourceName,
		SourceID:                 sourceID,
		EntityCode:               entityCode,
		EntityName:               stringField(raw.Fields, entityNameKeys),
		Category:                 stringField(raw.Fields, categoryKeys),
		Subcategory:              stringField(raw.Fields, subcategoryKeys),
		Headline:                 normaliseWhitespace(headline),
		BodyText:                 bodyText,
		BodyHTML:                 bodyHTML,
		DisseminatedAt:           disseminatedAt,
		ReceivedAt:               receivedAt,
		ProcessingLatencySeconds: latency,
		IsRevision:               IsRevision(matchText),
		Tags:                     DetectTags(matchText),
		DeclaredAttachments:      declared,
		RawPayload:               raw.Fields,
	}, nil
}

// stringField performs ordered fallback-key lookup and coerces scalar
// values to a trimmed string. Missing keys and non-scalar values yield "".
func stringField(fields map[string]any, keys []string) string {
	for _, key := range keys {
		val, ok := fields[key]
		if !ok || val == nil {
			continue
		}
		var s string
		switch v := val.(type) {
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			s = strconv.Itoa(v)
		case int64:
			s = strconv.FormatInt(v, 10)
		case bool:
			s = strconv.FormatBool(v)
		default:
			continue
		}
		s = strings.TrimSpace(s)
		if s != "" && !strings.EqualFold(s, "null") {
			return s
		}
	}
	return ""
}

// declaredAttachments assembles attachment references from whichever
// attachment-bearing fields the source populated, each tagged with its
// inferred kind. Duplicate URLs keep their first kind.
func declaredAttachments(fields map[string]any) []domain.DeclaredAttachment {
	var atts []domain.DeclaredAttachment
	seen := make(map[string]bool)
	for _, group := range attachmentKeyKinds {
		for _, key := range group.keys {
			url := stringField(fields, []string{key})
			if url == "" || seen[url] {
				continue
			}
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				continue
			}
			seen[url] = true
			atts = append(atts, domain.DeclaredAttachment{URL: url, Kind: group.kind})
		}
	}
	return atts
}
