// Package transcribe turns pending podcasts into ready ones. It runs speech
// recognition with bounded retries, cleans the recognized segments into a
// sorted non-overlapping sequence, and persists the transcript atomically.
// Concurrent requests for the same podcast share one in-flight transcription.
package transcribe
