// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "github.com/danielhkuo/name-duel/models"

// Phase derives a session's lifecycle phase from stored facts. Nothing
// persists the phase itself, so it can never disagree with the data:
//
//   - a tie-break round, active or closed, decides the phase outright
//   - before invites lock the session is open
//   - once locked, the session completes on its own when everyone is
//     done and a single name leads; a tied top keeps it locked until an
//     owner starts a tie-break
func Phase(sess models.Session, members []models.Member, lists []models.List, completions []models.Completion, tb *models.TieBreak, agg models.Aggregate) string {
	if tb != nil {
		if tb.Active {
			return models.PhaseTieBreak
		}
		return models.PhaseCompleted
	}
	if !sess.InvitesLocked {
		return models.PhaseOpen
	}
	if AllScoresIn(members, lists, completions) && len(agg.TopNames) == 1 {
		return models.PhaseCompleted
	}
	return models.PhaseInvitesLocked
}

// AllScoresIn reports whether every expected contribution has arrived:
// each owner's list is submitted, and each member has completed a score
// set for every submitted list other than their own.
func AllScoresIn(members []models.Member, lists []models.List, completions []models.Completion) bool {
	submitted := make(map[string]bool, len(lists))
	for _, l := range lists {
		if l.Status == models.ListSubmitted {
			submitted[l.OwnerUID] = true
		}
	}
	for _, m := range members {
		if m.Role == models.RoleOwner && !submitted[m.UID] {
			return false
		}
	}

	type pair struct{ rater, owner string }
	done := make(map[pair]bool, len(completions))
	for _, c := range completions {
		done[pair{c.RaterUID, c.OwnerUID}] = true
	}
	for _, m := range members {
		for owner := range submitted {
			if owner == m.UID {
				continue
			}
			if !done[pair{m.UID, owner}] {
				return false
			}
		}
	}
	return true
}

// FinalWinners resolves the session's outcome for a read model. A closed
// tie-break fixes the winners permanently; a session that completed on
// its own reports the current sole leader.
func FinalWinners(phase string, tb *models.TieBreak, agg models.Aggregate) []string {
	if phase != models.PhaseCompleted {
		return nil
	}
	if tb != nil {
		return tb.Winners
	}
	return agg.TopNames
}
