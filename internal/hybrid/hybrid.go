// Package hybrid blends vector similarity and keyword relevance into one
// ranking using relative score fusion.
package hybrid

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25 parameters.
const (
	k1 = 1.2
	b  = 0.75
)

// DefaultAlpha weights vector and keyword scores equally.
const DefaultAlpha = 0.5

// Candidate is one scored document. Keyword is zero when the document does not
// match any query term.
type Candidate struct {
	ID      string
	Vector  float64
	Keyword float64
	Matched bool
}

// Result is a fused candidate.
type Result struct {
	ID    string
	Score float64
}

// Tokenize lowercases text and splits it on anything that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// BM25 scores every document in docs against query. The corpus statistics
// (document frequency, average length) come from docs itself.
func BM25(query string, docs []string) []float64 {
	scores := make([]float64, len(docs))
	terms := unique(Tokenize(query))
	if len(terms) == 0 || len(docs) == 0 {
		return scores
	}

	tf := make([]map[string]int, len(docs))
	lengths := make([]int, len(docs))
	df := make(map[string]int, len(terms))
	total := 0
	for i, d := range docs {
		tokens := Tokenize(d)
		lengths[i] = len(tokens)
		total += len(tokens)
		counts := make(map[string]int)
		for _, tok := range tokens {
			counts[tok]++
		}
		tf[i] = counts
		for _, term := range terms {
			if counts[term] > 0 {
				df[term]++
			}
		}
	}
	avgLen := float64(total) / float64(len(docs))
	if avgLen == 0 {
		return scores
	}

	n := float64(len(docs))
	for i := range docs {
		var s float64
		for _, term := range terms {
			f := float64(tf[i][term])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			s += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*float64(lengths[i])/avgLen))
		}
		scores[i] = s
	}
	return scores
}

// Fuse min-max normalises the vector and keyword scores separately and returns
// alpha*vector + (1-alpha)*keyword, best first. Candidates that did not match
// the keyword query contribute zero on the keyword side. Ties keep input order.
func Fuse(candidates []Candidate, alpha float64) []Result {
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	vec := make([]float64, len(candidates))
	kw := make([]float64, len(candidates))
	matched := make([]bool, len(candidates))
	for i, c := range candidates {
		vec[i] = c.Vector
		kw[i] = c.Keyword
		matched[i] = c.Matched
	}
	vecAll := make([]bool, len(candidates))
	for i := range vecAll {
		vecAll[i] = true
	}
	vecNorm := normalize(vec, vecAll)
	kwNorm := normalize(kw, matched)

	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = Result{ID: c.ID, Score: alpha*vecNorm[i] + (1-alpha)*kwNorm[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// normalize maps the included values onto [0, 1]. A set with no spread maps to 1.
func normalize(values []float64, include []bool) []float64 {
	out := make([]float64, len(values))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		if !include[i] {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for i, v := range values {
		if !include[i] {
			continue
		}
		if hi == lo {
			out[i] = 1
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

func unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
