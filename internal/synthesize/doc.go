// Package synthesize attaches spoken audio to resolved answers. Synthesized
// audio lives in the evictable response cache; when it has been evicted the
// answer text survives and audio is regenerated on demand. Concurrent requests
// for the same answer share one synthesis.
package synthesize
