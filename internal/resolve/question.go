package resolve

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// wakeWords are spoken-invocation prefixes stripped before resolution so that
// "hey pod, what is X" and "what is X" fingerprint identically.
var wakeWords = []string{
	"hey pod",
	"okay pod",
	"hey echopod",
}

// minQuestionLength is the shortest normalized question accepted.
const minQuestionLength = 3

// NormalizeQuestion canonicalizes a question for fingerprinting: lowercase,
// wake word removed, punctuation trimmed, whitespace collapsed.
func NormalizeQuestion(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, wake := range wakeWords {
		rest, found := strings.CutPrefix(q, wake)
		if !found {
			continue
		}
		// Only strip at a word boundary so "hey podcast..." is untouched.
		if rest == "" || strings.ContainsRune(" \t,.!?;:", rune(rest[0])) {
			q = rest
			break
		}
	}
	q = strings.Trim(q, " \t\n,.!?;:")
	return strings.Join(strings.Fields(q), " ")
}

// Fingerprint derives the cache key for a question against one podcast.
func Fingerprint(podcastID, normalizedQuestion string) string {
	sum := sha256.Sum256([]byte(podcastID + "\n" + normalizedQuestion))
	return hex.EncodeToString(sum[:])
}
