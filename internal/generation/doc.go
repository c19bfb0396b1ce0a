// Package generation produces short spoken-style answers grounded in
// transcript excerpts, via an OpenAI-compatible chat completion endpoint.
package generation
