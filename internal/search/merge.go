package search

import "github.com/MrGangrene/bgg-flashcards/internal/datastore"

// MergeByID appends the games of incoming whose id is not yet in existing.
// Duplicates within incoming are dropped too.
func MergeByID(existing, incoming []datastore.Game) []datastore.Game {
	seen := make(map[int]struct{}, len(existing)+len(incoming))
	out := make([]datastore.Game, 0, len(existing)+len(incoming))
	for i := range existing {
		seen[existing[i].ID] = struct{}{}
		out = append(out, existing[i])
	}
	for i := range incoming {
		if _, dup := seen[incoming[i].ID]; dup {
			continue
		}
		seen[incoming[i].ID] = struct{}{}
		out = append(out, incoming[i])
	}
	return out
}

// ReplaceByID removes every id of detailed from games and expansions and
// appends the detailed records to the list matching their expansion flag.
func ReplaceByID(games, expansions, detailed []datastore.Game) ([]datastore.Game, []datastore.Game) {
	ids := make(map[int]struct{}, len(detailed))
	for i := range detailed {
		ids[detailed[i].ID] = struct{}{}
	}

	games = without(games, ids)
	expansions = without(expansions, ids)

	base, exp := Partition(detailed)
	return append(games, base...), append(expansions, exp...)
}

// Partition splits games into base games and expansions, keeping order.
func Partition(games []datastore.Game) (base, expansions []datastore.Game) {
	base = make([]datastore.Game, 0, len(games))
	expansions = make([]datastore.Game, 0)
	for i := range games {
		if games[i].IsExpansion {
			expansions = append(expansions, games[i])
		} else {
			base = append(base, games[i])
		}
	}
	return base, expansions
}

func without(games []datastore.Game, ids map[int]struct{}) []datastore.Game {
	out := make([]datastore.Game, 0, len(games))
	for i := range games {
		if _, drop := ids[games[i].ID]; !drop {
			out = append(out, games[i])
		}
	}
	return out
}
