// Package resolve answers listener questions about a transcribed podcast. A
// question is normalized into a fingerprint, served from the answer cache when
// possible, and otherwise resolved by retrieving relevant transcript windows
// and generating a grounded answer. Concurrent identical questions share one
// in-flight resolution.
package resolve
