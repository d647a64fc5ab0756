package ui

import (
	"context"
	"net/http"
	"strings"

	"ancine-dash/internal/domain"
	"ancine-dash/internal/tmdb"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

type titleData struct {
	Movie          *domain.MovieDetails
	Daily          []domain.DailyPoint
	States         []domain.Ranked
	Municipalities []domain.Ranked
}

// Title renders the per-title view. The date range defaults to the title's
// full exhibition period.
func (h *Handler) Title(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, err := parseFilterParams(r)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	if params.Title == "" {
		http.Redirect(w, r, "/ui", http.StatusSeeOther)
		return
	}

	period, err := h.Warehouse.TitleRange(ctx, params.Title)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	if !period.Valid() {
		h.renderServiceError(w, r, domain.ErrNotFound("no exhibitions found for %q", params.Title))
		return
	}

	// The title's own period takes the place of the overview's default month.
	if params.From == "" {
		params.From = dateValue(period.Min)
	}
	if params.To == "" {
		params.To = dateValue(period.Max)
	}
	bounds, err := h.Warehouse.Bounds(ctx, domain.TitleFilter{})
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	f := params.resolve(bounds, h.Today())

	side, err := h.sidebar(ctx, "/ui/title", f, bounds)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	side.TitlePeriod = period

	d, err := h.loadTitle(ctx, f)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	renderHTML(w, http.StatusOK, titlePage(f.Title, side, d))
}

func (h *Handler) loadTitle(ctx context.Context, f domain.TitleFilter) (titleData, error) {
	var (
		d   titleData
		err error
	)
	d.Movie = h.lookupMovie(ctx, f.Title)
	if d.Daily, err = h.Warehouse.DailySeries(ctx, f); err != nil {
		return d, err
	}
	if d.States, err = h.Warehouse.TopStates(ctx, f, 7); err != nil {
		return d, err
	}
	if d.Municipalities, err = h.Warehouse.TopMunicipalities(ctx, f, 7); err != nil {
		return d, err
	}
	return d, nil
}

// lookupMovie returns details for the first search hit, or nil.
func (h *Handler) lookupMovie(ctx context.Context, title string) *domain.MovieDetails {
	if h.Movies == nil {
		return nil
	}
	hits := h.Movies.Search(ctx, title)
	if len(hits) == 0 {
		return nil
	}
	d, ok := h.Movies.Details(ctx, hits[0].ID)
	if !ok {
		return nil
	}
	return d
}

func movieCard(title string, m *domain.MovieDetails) Node {
	if m == nil {
		return card("", H2(Text(title)), emptyNote("Sem dados disponíveis no TMDB."))
	}
	heading := m.Title
	if heading == "" {
		heading = title
	}
	if year := m.ReleaseYear(); year != "" {
		heading += " (" + year + ")"
	}
	overview := m.Overview
	if overview == "" {
		overview = "Sem sinopse disponível."
	}

	poster := emptyNote("Sem pôster TMDB")
	if m.PosterPath != "" {
		poster = Img(Src(tmdb.ImageBaseURL+m.PosterPath), Alt("Pôster de "+heading), Class("poster"))
	}

	return Div(Class("card movie"),
		Div(Class("movie-poster"), poster),
		Div(Class("movie-info"),
			H2(Text(heading)),
			P(Text(overview)),
			Dl(
				Dt(Text("Nota média")), Dd(Text(formatDecimal(m.VoteAverage))),
				Dt(Text("Votos")), Dd(Text(formatInt(m.VoteCount))),
				Dt(Text("Duração")), Dd(Textf("%d min", m.Runtime)),
				If(len(m.Directors) > 0, Group{Dt(Text("Direção")), Dd(Text(strings.Join(m.Directors, ", ")))}),
				If(len(m.Cast) > 0, Group{Dt(Text("Elenco")), Dd(Text(strings.Join(m.Cast, ", ")))}),
			),
		),
	)
}

func titlePage(title string, side sidebarData, d titleData) Node {
	body := []Node{movieCard(title, d.Movie)}
	if len(d.Daily) == 0 {
		body = append(body, card("Evolução de Público por Data", emptyNote("Nenhuma exibição encontrada para este filme no período.")))
		return appPage(title, "home", filterSidebar(side), body...)
	}

	rows := make([]Node, 0, len(d.Daily))
	for _, p := range d.Daily {
		day := formatDate(p.Date)
		rows = append(rows, Tr(
			data.Show(containsExpr(day)),
			Td(Text(day)),
			Td(Class("num"), Text(formatInt(p.Audience))),
			Td(Class("num"), Text(formatInt(p.Sessions))),
		))
	}

	body = append(body,
		card("Evolução de Público por Data", chartNode("title-daily", dailyFigure(d.Daily, true), false)),
		Div(
			data.Signals(map[string]any{"q": ""}),
			Div(Class("card"),
				Label(Text("Filtro rápido")),
				Input(Type("text"), data.Bind("q"), Placeholder("Filtrar por data (dd/mm/aaaa)")),
			),
			Div(Class("card table-wrap"),
				Table(
					THead(Tr(Th(Text("Data")), Th(Text("Público")), Th(Text("Sessões")))),
					TBody(Group(rows)),
				),
			),
		),
		Div(Class("grid"),
			card("Distribuição por Estado", chartNode("title-states", pieFigure(d.States), len(d.States) == 0)),
			card("Distribuição por Município", chartNode("title-municipalities", pieFigure(d.Municipalities), len(d.Municipalities) == 0)),
		),
	)
	return appPage(title, "home", filterSidebar(side), body...)
}
