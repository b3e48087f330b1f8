// Package record normalises raw announcement records into the
// canonical Announcement shape: ordered fallback-key lookup over the
// open field map, timestamp parsing into the target timezone, stable
// identity resolution, HTML cleanup and keyword tagging.
package record
