// Package asr turns normalized podcast audio into timed transcript segments
// using an OpenAI-compatible speech recognition endpoint.
package asr
