// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - RecordSource: Fetches raw records for a source and window
//   - RecordNormaliser: Transforms raw records into Announcements
//   - AttachmentResolver: Fetches and durably stores attachments
//   - BlobStore: Durable binary storage
//   - AnnouncementStore: Announcement + attachment persistence
//   - CursorStore: Per-source cursor and run history persistence
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
