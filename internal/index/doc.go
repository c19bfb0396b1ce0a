// Package index retrieves transcript passages relevant to a question. It
// groups segments into overlapping time windows and ranks them against the
// query with TF-IDF weighted cosine similarity. Everything is in-memory and
// rebuilt on demand from the segment store.
package index
