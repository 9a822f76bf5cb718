package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
)

func TestMergeByID(t *testing.T) {
	tests := []struct {
		name     string
		existing []datastore.Game
		incoming []datastore.Game
		want     []int
	}{
		{"empty", nil, nil, []int{}},
		{"append new", []datastore.Game{game(1, "a", false)}, []datastore.Game{game(2, "b", false)}, []int{1, 2}},
		{"skip existing", []datastore.Game{game(1, "a", false)}, []datastore.Game{game(1, "a2", false), game(3, "c", false)}, []int{1, 3}},
		{"dedupe incoming", nil, []datastore.Game{game(4, "d", false), game(4, "d", false)}, []int{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(MergeByID(tt.existing, tt.incoming)))
		})
	}
}

func TestMergeByIDKeepsExistingRecord(t *testing.T) {
	got := MergeByID([]datastore.Game{game(1, "cached", false)}, []datastore.Game{game(1, "preview", false)})
	assert.Equal(t, "cached", got[0].Name)
}

func TestReplaceByID(t *testing.T) {
	games := []datastore.Game{game(13, "CATAN preview", false), game(27710, "Catan Dice Game", false)}
	expansions := []datastore.Game{game(325, "Cities & Knights", true)}
	// 926 was misfiled as a base game in the preview
	games = append(games, game(926, "Seafarers preview", false))

	detailed := []datastore.Game{game(13, "CATAN", false), game(926, "Catan: Seafarers", true)}
	gotGames, gotExpansions := ReplaceByID(games, expansions, detailed)

	assert.Equal(t, []int{27710, 13}, ids(gotGames))
	assert.Equal(t, []int{325, 926}, ids(gotExpansions))
	assert.Equal(t, "CATAN", gotGames[1].Name)

	// every detailed id appears exactly once across both lists
	counts := map[int]int{}
	for _, g := range append(gotGames, gotExpansions...) {
		counts[g.ID]++
	}
	for _, d := range detailed {
		assert.Equal(t, 1, counts[d.ID])
	}
}

func TestReplaceByIDDoesNotAliasInput(t *testing.T) {
	games := make([]datastore.Game, 1, 4)
	games[0] = game(1, "a", false)
	gotGames, _ := ReplaceByID(games, nil, []datastore.Game{game(2, "b", false)})
	gotGames[0].Name = "changed"
	assert.Equal(t, "a", games[0].Name)
}

func TestPartition(t *testing.T) {
	base, exp := Partition([]datastore.Game{game(1, "a", false), game(2, "b", true), game(3, "c", false)})
	assert.Equal(t, []int{1, 3}, ids(base))
	assert.Equal(t, []int{2}, ids(exp))

	base, exp = Partition(nil)
	assert.NotNil(t, base)
	assert.NotNil(t, exp)
}
