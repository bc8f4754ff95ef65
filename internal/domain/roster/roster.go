// Package roster validates match rosters and derives team identities.
package roster

import (
	"slices"
	"strings"

	"github.com/segmentio/fasthash/fnv1a"
	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
)

const signatureSep = "|"

// Signature returns the canonical, order independent key of a set of ids.
func Signature(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return strings.Join(sorted, signatureSep)
}

// Hash returns the 64-bit FNV-1a hash of a signature, used as an index key.
func Hash(signature string) uint64 {
	return fnv1a.HashString64(signature)
}

// Member is a team member as seen by TeamName.
type Member struct {
	ID   string
	Name string
}

// TeamName builds a team name from the members' first names, ordered by
// member id so the name is as order independent as the signature.
func TeamName(members []Member) string {
	sorted := slices.Clone(members)
	slices.SortFunc(sorted, func(a, b Member) int { return strings.Compare(a.ID, b.ID) })
	firsts := make([]string, 0, len(sorted))
	for _, m := range sorted {
		f := strings.Fields(m.Name)
		if len(f) == 0 {
			continue
		}
		firsts = append(firsts, f[0])
	}
	return strings.Join(firsts, " & ")
}

// Validate checks that both rosters are non-empty, equally sized, free of
// duplicates and disjoint.
func Validate(home, away []string) error {
	const op = "roster.validate"
	if len(home) == 0 || len(away) == 0 {
		return errs.E(op, errs.ErrValidation, "both teams need at least one player")
	}
	if len(home) != len(away) {
		return errs.E(op, errs.ErrValidation, "teams must have equal number of players")
	}
	seen := make(map[string]bool, len(home)+len(away))
	for _, id := range append(slices.Clone(home), away...) {
		if strings.TrimSpace(id) == "" {
			return errs.E(op, errs.ErrValidation, "player id must not be empty")
		}
		if seen[id] {
			return errs.E(op, errs.ErrValidation, "a player can only appear once in a match")
		}
		seen[id] = true
	}
	return nil
}

// NeedsTeams reports whether a match between rosters of these sizes
// settles team aggregates as well.
func NeedsTeams(home, away int) bool {
	return home > 1 && away > 1
}
