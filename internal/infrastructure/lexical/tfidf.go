// Package lexical implements the always-available TF-IDF tier over corpus
// questions.
package lexical

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/faq-assistant/internal/core/domain"
)

type termWeight struct {
	Term   int
	Weight float64
}

// Index is immutable after NewIndex and safe for concurrent Score calls.
type Index struct {
	vocabulary map[string]int
	idf        []float64
	vectors    [][]termWeight
}

func NewIndex(questions []string) *Index {
	tokenized := make([][]string, len(questions))
	vocabulary := make(map[string]int, 256)
	docFreq := make([]int, 0, 256)

	for i, question := range questions {
		tokens := tokenize(question)
		tokenized[i] = tokens
		seen := make(map[int]struct{}, len(tokens))
		for _, token := range tokens {
			idx, ok := vocabulary[token]
			if !ok {
				idx = len(docFreq)
				vocabulary[token] = idx
				docFreq = append(docFreq, 0)
			}
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			docFreq[idx]++
		}
	}

	n := float64(len(questions))
	idf := make([]float64, len(docFreq))
	for idx, df := range docFreq {
		idf[idx] = math.Log((1+n)/(1+float64(df))) + 1
	}

	ix := &Index{vocabulary: vocabulary, idf: idf}
	ix.vectors = make([][]termWeight, len(tokenized))
	for i, tokens := range tokenized {
		ix.vectors[i] = ix.weigh(tokens)
	}
	return ix
}

func (ix *Index) Len() int {
	return len(ix.vectors)
}

// Score returns the best cosine match for query. Ties keep the earliest entry.
// A query without vocabulary overlap still returns entry 0 with score 0.
func (ix *Index) Score(query string) (domain.Match, bool) {
	if strings.TrimSpace(query) == "" || len(ix.vectors) == 0 {
		return domain.Match{}, false
	}

	queryVec := ix.weigh(tokenize(query))
	best := domain.Match{Index: 0, Score: 0}
	for i, docVec := range ix.vectors {
		sim := dot(queryVec, docVec)
		if sim > best.Score {
			best = domain.Match{Index: i, Score: sim}
		}
	}
	if best.Score > 1 {
		best.Score = 1
	}
	return best, true
}

// weigh turns tokens into an L2-normalized tf*idf vector sorted by term id.
// Out-of-vocabulary tokens are dropped.
func (ix *Index) weigh(tokens []string) []termWeight {
	tf := make(map[int]float64, len(tokens))
	for _, token := range tokens {
		idx, ok := ix.vocabulary[token]
		if !ok {
			continue
		}
		tf[idx]++
	}
	if len(tf) == 0 {
		return nil
	}

	out := make([]termWeight, 0, len(tf))
	var norm float64
	for idx, count := range tf {
		w := count * ix.idf[idx]
		norm += w * w
		out = append(out, termWeight{Term: idx, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })

	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil
	}
	for i := range out {
		out[i].Weight /= norm
	}
	return out
}

func dot(a, b []termWeight) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Term == b[j].Term:
			sum += a[i].Weight * b[j].Weight
			i++
			j++
		case a[i].Term < b[j].Term:
			i++
		default:
			j++
		}
	}
	return sum
}

// tokenize lower-cases s and keeps word runs (letters, digits, underscore) of
// at least two runes that are not English stop words.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 16)
	var b strings.Builder
	runes := 0
	flush := func() {
		if runes >= 2 {
			token := b.String()
			if _, stop := stopWords[token]; !stop {
				out = append(out, token)
			}
		}
		b.Reset()
		runes = 0
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			runes++
			continue
		}
		flush()
	}
	flush()
	return out
}
