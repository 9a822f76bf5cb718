package app

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/MrGangrene/bgg-flashcards/internal/datastore"
	"github.com/MrGangrene/bgg-flashcards/internal/search"
)

// TablePresenter prints every view as a plain text table.
type TablePresenter struct {
	w io.Writer
}

// NewTablePresenter returns a presenter writing to w.
func NewTablePresenter(w io.Writer) *TablePresenter {
	return &TablePresenter{w: w}
}

// Render prints the games and expansions of v.
func (p *TablePresenter) Render(v search.View) {
	status := ""
	if v.Loading {
		status = " (loading)"
	}
	_, _ = fmt.Fprintf(p.w, "== %q: %d games, %d expansions%s\n", v.Query, len(v.Games), len(v.Expansions), status)

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tYEAR\tPLAYERS\tRATING\tSOURCE")
	for i := range v.Games {
		writeRow(tw, &v.Games[i])
	}
	if len(v.Expansions) > 0 {
		_, _ = fmt.Fprintln(tw, "\t-- expansions --\t\t\t\t")
		for i := range v.Expansions {
			writeRow(tw, &v.Expansions[i])
		}
	}
	_ = tw.Flush()
}

// Indicator prints a line when background work starts or stops.
func (p *TablePresenter) Indicator(on bool) {
	if on {
		_, _ = fmt.Fprintln(p.w, "... searching catalog")
		return
	}
	_, _ = fmt.Fprintln(p.w, "... catalog search finished")
}

func writeRow(w io.Writer, g *datastore.Game) {
	year := "-"
	if g.YearPublished != nil {
		year = strconv.Itoa(*g.YearPublished)
	}
	players := "-"
	if g.MinPlayers > 0 || g.MaxPlayers > 0 {
		players = fmt.Sprintf("%d-%d", g.MinPlayers, g.MaxPlayers)
	}
	rating := "-"
	if !g.Preview && g.AvgRating > 0 {
		rating = strconv.FormatFloat(g.AvgRating, 'f', 2, 64)
	}
	_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, year, players, rating, g.Provenance)
}
