package util

import "github.com/sahilm/fuzzy"

// RankTitles orders titles by fuzzy match quality against query and returns
// their indexes. Titles that do not match at all keep their relative order
// after the matches. An empty query returns the identity order.
func RankTitles(query string, titles []string) []int {
	out := make([]int, 0, len(titles))
	if query == "" {
		for i := range titles {
			out = append(out, i)
		}
		return out
	}
	seen := make(map[int]bool, len(titles))
	for _, m := range fuzzy.Find(query, titles) {
		out = append(out, m.Index)
		seen[m.Index] = true
	}
	for i := range titles {
		if !seen[i] {
			out = append(out, i)
		}
	}
	return out
}

// ScoreCompletions returns the top n titles matching input, for shell completion.
func ScoreCompletions(input string, candidates []string, n int) []string {
	if input == "" {
		return candidates
	}
	matches := fuzzy.Find(input, candidates)
	if len(matches) == 0 {
		return nil
	}

	limit := n
	if n <= 0 || len(matches) < limit {
		limit = len(matches)
	}

	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = matches[i].Str
	}
	return out
}
