// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/danielhkuo/name-duel/models"
)

// Aggregate combines submitted lists and completed score sets into the
// session-wide ranking. Lower totals rank higher: a name's total is the
// sum of every rank recorded for it, self-rank included. Names are
// merged case-insensitively across lists; the first owner's spelling
// (owners ordered by uid) is the one displayed.
//
// Draft lists contribute nothing, and score rows that do not match a
// name on a submitted list are skipped. The result is deterministic for
// a given set of inputs regardless of slice order.
func Aggregate(lists []models.List, scores []models.ScoreRow) models.Aggregate {
	ordered := make([]models.List, len(lists))
	copy(ordered, lists)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].OwnerUID < ordered[j].OwnerUID
	})

	rows := make(map[string]*models.AggregateRow)
	add := func(key, name, rater string, value int) {
		row, ok := rows[key]
		if !ok {
			row = &models.AggregateRow{Name: name, Owners: make(map[string]int)}
			rows[key] = row
		}
		row.Total += value
		row.Count++
		row.Owners[rater] += value
	}

	// belongs tracks which (owner, name) pairs may receive peer scores
	belongs := make(map[string]map[string]bool)
	for _, l := range ordered {
		if l.Status != models.ListSubmitted {
			continue
		}
		keys := make(map[string]bool, len(l.Names))
		for _, name := range l.Names {
			key := canonical(name)
			keys[key] = true
			add(key, name, l.OwnerUID, l.SelfRanks[name])
		}
		belongs[l.OwnerUID] = keys
	}

	for _, s := range scores {
		key := canonical(s.Name)
		if !belongs[s.OwnerUID][key] {
			continue
		}
		if s.RaterUID == s.OwnerUID {
			continue // self-ranks come from the list itself
		}
		add(key, s.Name, s.RaterUID, s.Value)
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

	return models.Aggregate{Ranking: ranking, TopNames: topNames(ranking)}
}

// topNames collects every name sharing the minimum total. The ranking
// must already be sorted ascending.
func topNames(ranking []models.AggregateRow) []string {
	if len(ranking) == 0 {
		return nil
	}
	best := ranking[0].Total
	top := make([]string, 0, 1)
	for _, row := range ranking {
		if row.Total != best {
			break
		}
		top = append(top, row.Name)
	}
	return top
}
