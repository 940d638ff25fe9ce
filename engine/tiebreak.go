// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/danielhkuo/name-duel/models"
)

// StartTieBreak extracts the tied names from an aggregate. A tie-break
// only makes sense when two or more names share the top total.
func StartTieBreak(agg models.Aggregate) ([]string, error) {
	if len(agg.TopNames) < 2 {
		return nil, ErrNoTie
	}
	names := make([]string, len(agg.TopNames))
	copy(names, agg.TopNames)
	return names, nil
}

// TallyTieBreak aggregates the recorded votes over the tied names the
// same way session scores are aggregated: sum of ranks ascending, names
// compared case-insensitively. Every name sharing the minimum total is
// a winner; co-winners are a terminal outcome, not grounds for another
// round.
func TallyTieBreak(names []string, votes map[string]map[string]int) (models.Aggregate, error) {
	if len(votes) == 0 {
		return models.Aggregate{}, ErrNoVotes
	}

	rows := make(map[string]*models.AggregateRow, len(names))
	for _, name := range names {
		key := canonical(name)
		if _, ok := rows[key]; !ok {
			rows[key] = &models.AggregateRow{Name: name, Owners: make(map[string]int)}
		}
	}

	voters := maps.Keys(votes)
	sort.Strings(voters)
	for _, voter := range voters {
		for raw, rank := range votes[voter] {
			row, ok := rows[canonical(raw)]
			if !ok {
				continue // stray vote row for a name outside the round
			}
			row.Total += rank
			row.Count++
			row.Owners[voter] += rank
		}
	}

	keys := maps.Keys(rows)
	sort.Strings(keys)
	ranking := make([]models.AggregateRow, 0, len(keys))
	for _, k := range keys {
		row := *rows[k]
		if row.Count > 0 {
			row.Average = float64(row.Total) / float64(row.Count)
		}
		ranking = append(ranking, row)
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Total != ranking[j].Total {
			return ranking[i].Total < ranking[j].Total
		}
		return canonical(ranking[i].Name) < canonical(ranking[j].Name)
	})

	return models.Aggregate{Ranking: ranking, TopNames: topNames(ranking)}, nil
}
