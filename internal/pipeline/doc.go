// Package pipeline assembles the full question-answering pipeline: ingestion,
// background transcription, retrieval, answer resolution, and speech
// synthesis, sharing one library store and blob store. The daemon and CLI talk
// to the pipeline, never to the components directly.
package pipeline
