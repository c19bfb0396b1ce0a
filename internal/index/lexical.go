package index

import (
	"math"
	"strings"
	"unicode"
)

// stopwords are high-frequency English tokens that carry no retrieval signal.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "him": {},
	"his": {}, "how": {}, "its": {}, "who": {}, "did": {}, "get": {},
	"this": {}, "that": {}, "with": {}, "they": {}, "them": {}, "then": {},
	"there": {}, "their": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "about": {},
	"just": {}, "like": {}, "into": {}, "over": {}, "some": {}, "from": {},
	"been": {}, "were": {}, "does": {}, "doing": {}, "because": {},
	"very": {}, "really": {}, "going": {}, "gonna": {}, "yeah": {},
	"know": {}, "think": {}, "mean": {}, "right": {}, "okay": {},
}

// tokenize lowercases text and splits it into content-bearing terms, dropping
// stopwords and terms shorter than minLength.
func tokenize(text string, minLength int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, "'")
		if len(field) < minLength {
			continue
		}
		if _, skip := stopwords[field]; skip {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// termVector is a sparse term-frequency vector.
type termVector map[string]float64

func newTermVector(tokens []string) termVector {
	if len(tokens) == 0 {
		return nil
	}
	v := make(termVector, len(tokens))
	for _, tok := range tokens {
		v[tok]++
	}
	total := float64(len(tokens))
	for tok := range v {
		v[tok] /= total
	}
	return v
}

// corpusWeights holds inverse document frequencies for one podcast's windows.
type corpusWeights struct {
	idf      map[string]float64
	docCount int
}

func buildWeights(docs []termVector) corpusWeights {
	df := make(map[string]int)
	for _, doc := range docs {
		for term := range doc {
			df[term]++
		}
	}
	idf := make(map[string]float64, len(df))
	n := float64(len(docs))
	for term, count := range df {
		idf[term] = math.Log(1 + n/float64(count))
	}
	return corpusWeights{idf: idf, docCount: len(docs)}
}

// weighted applies IDF weights to a term-frequency vector. Terms absent from
// the corpus fall out, which keeps off-topic query words from polluting scores.
func (w corpusWeights) weighted(v termVector) termVector {
	out := make(termVector, len(v))
	for term, tf := range v {
		if idf, ok := w.idf[term]; ok {
			out[term] = tf * idf
		}
	}
	return out
}

// cosine computes the cosine similarity between two sparse vectors.
func cosine(a, b termVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot, normA, normB float64
	for _, weight := range b {
		normB += weight * weight
	}
	for term, weightA := range a {
		normA += weightA * weightA
		if weightB, ok := b[term]; ok {
			dot += weightA * weightB
		}
	}
	if dot == 0 || normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
