// Package normalisers provides implementations of the RecordNormaliser
// interface. Each normaliser knows how to map one family of raw record
// shapes onto the canonical Announcement.
package normalisers
