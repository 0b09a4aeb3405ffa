package inventory

import (
	"strings"

	"github.com/Ananth-NQI/estoque-backend/internal/utils"
)

// MatchTier ranks how well a product name matches a query. Higher is better.
type MatchTier int

const (
	TierNone MatchTier = iota
	TierSubstring
	TierPrefix
	TierExact
)

// Tier compares a query with a product name after normalizing both
func Tier(query, name string) MatchTier {
	q := utils.Normalize(query)
	n := utils.Normalize(name)
	if q == "" || n == "" {
		return TierNone
	}
	switch {
	case q == n:
		return TierExact
	case strings.HasPrefix(n, q), strings.HasPrefix(q, n):
		return TierPrefix
	case strings.Contains(n, q), strings.Contains(q, n):
		return TierSubstring
	default:
		return TierNone
	}
}

// Resolution is the outcome of resolving a query against candidates
type Resolution[T any] struct {
	Tier    MatchTier
	Matches []T // every candidate in the best tier, in input order
}

// Found reports a single unambiguous match
func (r Resolution[T]) Found() bool { return len(r.Matches) == 1 }

// Ambiguous reports several equally ranked matches
func (r Resolution[T]) Ambiguous() bool { return len(r.Matches) > 1 }

// Best returns the single match. Only valid when Found is true.
func (r Resolution[T]) Best() T { return r.Matches[0] }

// Resolve keeps the candidates of the best matching tier: exact beats prefix,
// prefix beats substring.
func Resolve[T any](query string, candidates []T, name func(T) string) Resolution[T] {
	var res Resolution[T]
	for _, c := range candidates {
		tier := Tier(query, name(c))
		switch {
		case tier == TierNone || tier < res.Tier:
			continue
		case tier > res.Tier:
			res.Tier = tier
			res.Matches = []T{c}
		default:
			res.Matches = append(res.Matches, c)
		}
	}
	return res
}
