// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"fmt"
	"strings"
)

// canonical returns the case-insensitive identity of a name. Two names
// that canonicalize equally are the same name everywhere: list
// deduplication, score matching, and aggregation.
func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateList cleans and checks an owner's name list. Blank entries are
// trimmed away. Returns the cleaned names in order plus the ranks keyed
// by cleaned name (unranked names omitted).
//
// Duplicate names are rejected even for drafts. With finalize set, the
// list must hold exactly requiredNames names and the self-ranks must use
// each rank 1..requiredNames exactly once.
func ValidateList(names []string, selfRanks map[string]int, requiredNames int, finalize bool) ([]string, map[string]int, error) {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		key := canonical(name)
		if seen[key] {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		seen[key] = true
		cleaned = append(cleaned, name)
	}

	if len(cleaned) > requiredNames {
		return nil, nil, fmt.Errorf("%w: got %d, want at most %d", ErrIncompleteList, len(cleaned), requiredNames)
	}
	if finalize && len(cleaned) != requiredNames {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrIncompleteList, len(cleaned), requiredNames)
	}

	// Re-key the ranks canonically so "Ann" and "ann " address the same entry
	rankFor := make(map[string]int, len(selfRanks))
	for raw, rank := range selfRanks {
		key := canonical(raw)
		if key == "" {
			continue
		}
		if !seen[key] {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownName, raw)
		}
		if _, dup := rankFor[key]; dup {
			return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateName, raw)
		}
		rankFor[key] = rank
	}

	ranks := make(map[string]int, len(cleaned))
	used := make(map[int]string, len(cleaned))
	for _, name := range cleaned {
		rank := rankFor[canonical(name)]
		if rank == 0 {
			if finalize {
				return nil, nil, fmt.Errorf("%w: no rank for %q", ErrRankOutOfRange, name)
			}
			continue
		}
		if rank < 1 || rank > requiredNames {
			return nil, nil, fmt.Errorf("%w: rank %d for %q is outside 1..%d", ErrRankOutOfRange, rank, name, requiredNames)
		}
		if other, taken := used[rank]; taken {
			return nil, nil, fmt.Errorf("%w: rank %d assigned to both %q and %q", ErrDuplicateRank, rank, other, name)
		}
		used[rank] = name
		ranks[name] = rank
	}

	return cleaned, ranks, nil
}

// ValidateScores checks a complete score set against a list's names.
// Every name must carry exactly one rank and the ranks must form a
// permutation of 1..len(names). Returns the ranks re-keyed by the list's
// own spelling of each name.
func ValidateScores(ranks map[string]int, names []string) (map[string]int, error) {
	n := len(names)
	display := make(map[string]string, n)
	for _, name := range names {
		display[canonical(name)] = name
	}

	assigned := make(map[string]int, len(ranks))
	for raw, rank := range ranks {
		name, ok := display[canonical(raw)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownName, raw)
		}
		if _, dup := assigned[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, raw)
		}
		assigned[name] = rank
	}

	used := make(map[int]string, n)
	for _, name := range names {
		rank, ok := assigned[name]
		if !ok {
			return nil, fmt.Errorf("%w: no rank for %q", ErrIncompleteScoring, name)
		}
		if rank < 1 || rank > n {
			return nil, fmt.Errorf("%w: rank %d for %q is outside 1..%d", ErrRankOutOfRange, rank, name, n)
		}
		if other, taken := used[rank]; taken {
			return nil, fmt.Errorf("%w: rank %d assigned to both %q and %q", ErrDuplicateRank, rank, other, name)
		}
		used[rank] = name
	}

	return assigned, nil
}

// ApplyDraftScore folds one rank assignment into a rater's draft and
// returns the updated draft. Assigning a value silently clears that
// value from any other name holding it, so a draft never carries a
// duplicate rank. A value of 0 clears the name's entry instead.
func ApplyDraftScore(draft map[string]int, names []string, name string, value int) (map[string]int, error) {
	display := make(map[string]string, len(names))
	for _, n := range names {
		display[canonical(n)] = n
	}
	target, ok := display[canonical(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	if value < 0 || value > len(names) {
		return nil, fmt.Errorf("%w: value %d is outside 0..%d", ErrRankOutOfRange, value, len(names))
	}

	next := make(map[string]int, len(draft)+1)
	for k, v := range draft {
		if canonical(k) == canonical(target) {
			continue
		}
		if value != 0 && v == value {
			continue // the value moves to its new name
		}
		next[k] = v
	}
	if value != 0 {
		next[target] = value
	}
	return next, nil
}
