// Package ingest admits uploaded audio into the library: it validates the
// upload, normalizes it to canonical WAV, derives the content-hash identity,
// and records the podcast for background transcription. Re-uploading the same
// audio is idempotent and returns the existing record.
package ingest
