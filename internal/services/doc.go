// Package services defines shared utilities consumed by the pipeline
// components and external capability clients.
//
// Key responsibilities:
//   - Context helpers that stamp podcast identifiers, query fingerprints,
//     stage names, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into user-fixable, transient, and terminal outcomes.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across components.
package services
