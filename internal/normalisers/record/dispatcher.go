package record

import (
	"context"
	"time"

	"github.com/custodia-labs/annsync/internal/core/domain"
	"github.com/custodia-labs/annsync/internal/core/ports/driven"
	"github.com/custodia-labs/annsync/internal/logger"
)

// Ensure Dispatcher implements the interface.
var _ driven.RecordNormaliser = (*Dispatcher)(nil)

// Dispatcher routes each record to the normaliser for its source, so
// sources with different target timezones coexist behind one
// RecordNormaliser.
type Dispatcher struct {
	bySource    map[string]*Normaliser
	defaultNorm *Normaliser
}

// NewDispatcher builds one normaliser per source from its configured
// timezone. A source with an unknown timezone falls back to the
// pipeline default.
func NewDispatcher(sources []domain.Source) *Dispatcher {
	defaultLoc, err := time.LoadLocation(domain.DefaultTimezone)
	if err != nil {
		defaultLoc = time.UTC
	}

	d := &Dispatcher{
		bySource:    make(map[string]*Normaliser, len(sources)),
		defaultNorm: New(defaultLoc),
	}
	for _, src := range sources {
		loc := defaultLoc
		if src.Timezone != "" {
			parsed, err := time.LoadLocation(src.Timezone)
			if err != nil {
				logger.Warn("Source %s: unknown timezone %q, using %s", src.Name, src.Timezone, domain.DefaultTimezone)
			} else {
				loc = parsed
			}
		}
		d.bySource[src.Name] = New(loc)
	}
	return d
}

// Normalise dispatches on the record's source name.
func (d *Dispatcher) Normalise(ctx context.Context, raw *domain.RawRecord) (*domain.Announcement, error) {
	if norm, ok := d.bySource[raw.SourceName]; ok {
		return norm.Normalise(ctx, raw)
	}
	return d.defaultNorm.Normalise(ctx, raw)
}
