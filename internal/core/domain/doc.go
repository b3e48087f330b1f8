// Package domain defines the core business entities for annsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Announcement: One disclosure event in canonical form
//   - Attachment: A binary artifact owned by an Announcement
//   - SourceCursor: Persisted per-source synchronisation state
//   - RunReport: The structured result of one ingestion run
//   - Source: A configured announcement source
//   - RawRecord: An open key-value record from a raw record source
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
