// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package engine holds the session decision rules: list validation, score
validation, rank aggregation, tie-break tallying, and lifecycle phase
derivation. Nothing here touches the database or the network; every
function takes snapshots in and returns values out, so the rules are
table-testable in isolation and behave identically wherever they run.

# Validation

Lists and score sets are validated against the session's required name
count:

	names, ranks, err := engine.ValidateList(req.Names, req.SelfRanks, n, finalize)
	ranks, err := engine.ValidateScores(req.Ranks, list.Names)

Names compare case-insensitively after trimming, so "Ann" and " ann"
are one name. Draft lists may be partial but never contain duplicates;
finalized lists and completed score sets must rank every name exactly
once.

# Draft Scores

ApplyDraftScore folds a single assignment into a rater's draft with
last-write-wins semantics: giving a value to one name silently clears
it from whichever name held it before.

# Aggregation

Aggregate combines submitted lists and completed score sets into one
ranking. A name's total is the sum of all ranks recorded for it (the
owner's self-rank counts like any peer score), lower totals rank
higher, and equal totals order alphabetically. TopNames carries every
name at the minimum total; more than one means a tie.

# Tie-Breaks

StartTieBreak lifts the tied names out of an aggregate, TallyTieBreak
scores the votes over those names with the same sum-of-ranks rule.
Co-winners after a tie-break are final; there is no second round.

# Lifecycle

Phase derives open / invites_locked / tiebreak / completed from stored
facts rather than a persisted state column, so the reported phase can
never drift from the data that implies it.

# Errors

Failures are sentinel errors grouped by how the caller should react:
validation errors (fix the input), state conflicts (refresh, the
session moved on), failed preconditions (the command does not apply
yet), and ErrForbidden (role does not permit the command). Handlers map
the groups onto 400, 409, 412, and 403.
*/
package engine
