package domain

// RawRecord is one heterogeneous record as yielded by a raw record
// source, before normalisation. Field names vary per source; the
// normaliser resolves them with ordered fallback-key lookup.
type RawRecord struct {
	// SourceName identifies the configured source that produced the record.
	SourceName string

	// Fields is the open key-value shape of the upstream record.
	Fields map[string]any
}
