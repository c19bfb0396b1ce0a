// Package store manages library persistence backed by SQLite: podcasts, their
// time-aligned transcript segments, and cached answers keyed by query
// fingerprint.
//
// Podcasts and segments are written once and read thereafter; a podcast's
// transcript is only ever replaced wholesale inside a transaction, so readers
// never observe a partial segment sequence. Answers are keyed by fingerprint
// and shared by every holder of the same fingerprint.
package store
