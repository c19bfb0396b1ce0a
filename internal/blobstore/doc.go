// Package blobstore implements the content-addressed byte store behind the
// pipeline: normalized podcast audio and synthesized answer audio, keyed by
// the SHA-256 of the content.
//
// Blobs live in two categories. Audio blobs are never evicted automatically;
// response blobs are reclaimed least-recently-used once usage exceeds the
// configured budget, with file modification time serving as the recency
// marker (reads touch it). Eviction bookkeeping is the only mutable shared
// state and is guarded by a mutex.
package blobstore
