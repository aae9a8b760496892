// Package search ranks prompt metadata by text and tag match. It operates
// on metadata already fetched from the vault; there is no index state to
// maintain.
package search

import (
	"math"
	"sort"
	"strings"

	"promptvault/internal/vault"
)

// DefaultLimit caps result lists when the query names no limit.
const DefaultLimit = 10

// Query filters and ranks prompt records.
type Query struct {
	Text   string   `json:"text"`
	Tags   []string `json:"tags,omitempty"`
	Author string   `json:"author,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// Match is one ranked search hit.
type Match struct {
	ID      string          `json:"id"`
	Version string          `json:"version"`
	Meta    *vault.Metadata `json:"metadata"`
	Score   float64         `json:"score"`
}

// Run filters candidates and returns them ranked by descending score,
// stable for ties (input order preserved), truncated to the query limit.
//
// A candidate passes when its name+description contains the query text
// (case-insensitive), at least one query tag is a substring of one of its
// tags (when tags are given), and the author matches exactly (when given).
func Run(candidates []vault.Record, q Query) []Match {
	text := strings.ToLower(q.Text)

	var matches []Match
	for _, rec := range candidates {
		if rec.Meta == nil {
			continue
		}
		name := strings.ToLower(rec.Meta.Name)
		desc := strings.ToLower(rec.Meta.Description)

		if text != "" && !strings.Contains(name, text) && !strings.Contains(desc, text) {
			continue
		}
		tagPairs := matchingTagPairs(q.Tags, rec.Meta.Tags)
		if len(q.Tags) > 0 && tagPairs == 0 {
			continue
		}
		if q.Author != "" && rec.Meta.Author != q.Author {
			continue
		}

		score := 0.0
		if text != "" && strings.Contains(name, text) {
			score += 10
		}
		if text != "" && strings.Contains(desc, text) {
			score += 5
		}
		score += 3 * float64(tagPairs)
		score += math.Log(float64(rec.Meta.ExecutionCount) + 1)
		score += rec.Meta.AverageRating

		matches = append(matches, Match{ID: rec.ID, Version: rec.Version, Meta: rec.Meta, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// matchingTagPairs counts (query tag, candidate tag) pairs where the query
// tag is a case-insensitive substring of the candidate tag.
func matchingTagPairs(queryTags, candidateTags []string) int {
	pairs := 0
	for _, qt := range queryTags {
		lqt := strings.ToLower(qt)
		for _, ct := range candidateTags {
			if strings.Contains(strings.ToLower(ct), lqt) {
				pairs++
			}
		}
	}
	return pairs
}
