package ui

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ancine-dash/internal/domain"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

// sidebarData feeds the filter form.
type sidebarData struct {
	Action         string
	Filter         domain.TitleFilter
	Bounds         domain.DateBounds
	Titles         []string
	States         []string
	Municipalities []string
	TitlePeriod    domain.DateBounds
}

type overviewData struct {
	TopAudience    []domain.Ranked
	TopSessions    []domain.Ranked
	ByState        []domain.Ranked
	TopAverage     []domain.Ranked
	Daily          []domain.DailyPoint
	LeastWatched   []domain.Ranked
	Municipalities []domain.Ranked
}

// Overview renders the box-office panel. A title selection redirects to the
// per-title view with the same filters.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, err := parseFilterParams(r)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	if params.Title != "" {
		http.Redirect(w, r, "/ui/title?"+r.URL.RawQuery, http.StatusSeeOther)
		return
	}

	bounds, err := h.Warehouse.Bounds(ctx, domain.TitleFilter{})
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		renderHTML(w, http.StatusOK, appPage("Painel de Bilheteria", "home", nil,
			card("Nenhum dado carregado",
				P(Text("O conjunto de dados unificado ainda não existe. Execute "), Code(Text("ancine ingest")), Text(" e recarregue a página."))),
		))
		return
	}
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}

	f := params.resolve(bounds, h.Today())
	side, err := h.sidebar(ctx, "/ui", f, bounds)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	d, err := h.loadOverview(ctx, f)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	renderHTML(w, http.StatusOK, overviewPage(side, d))
}

func (h *Handler) sidebar(ctx context.Context, action string, f domain.TitleFilter, bounds domain.DateBounds) (sidebarData, error) {
	titles, err := h.Warehouse.Titles(ctx)
	if err != nil {
		return sidebarData{}, err
	}
	states, err := h.Warehouse.States(ctx)
	if err != nil {
		return sidebarData{}, err
	}
	munis, err := h.Warehouse.Municipalities(ctx, f.States)
	if err != nil {
		return sidebarData{}, err
	}
	return sidebarData{
		Action:         action,
		Filter:         f,
		Bounds:         bounds,
		Titles:         titles,
		States:         states,
		Municipalities: munis,
	}, nil
}

func (h *Handler) loadOverview(ctx context.Context, f domain.TitleFilter) (overviewData, error) {
	var (
		d   overviewData
		err error
	)
	wh := h.Warehouse
	if d.TopAudience, err = wh.TopByAudience(ctx, f, 10); err != nil {
		return d, err
	}
	if d.TopSessions, err = wh.TopBySessions(ctx, f, 10); err != nil {
		return d, err
	}
	if d.ByState, err = wh.AudienceByState(ctx, f); err != nil {
		return d, err
	}
	if d.TopAverage, err = wh.TopAveragePerSession(ctx, f, 10); err != nil {
		return d, err
	}
	if d.Daily, err = wh.DailySeries(ctx, f); err != nil {
		return d, err
	}
	if d.LeastWatched, err = wh.LeastWatched(ctx, f, 5); err != nil {
		return d, err
	}
	if d.Municipalities, err = wh.TopMunicipalities(ctx, f, 5); err != nil {
		return d, err
	}
	return d, nil
}

func filterSidebar(s sidebarData) Node {
	titleOptions := make([]Node, 0, len(s.Titles))
	for _, t := range s.Titles {
		titleOptions = append(titleOptions, Option(Value(t)))
	}

	return Form(
		Class("filters"),
		Method("get"),
		Action(s.Action),
		H2(Text("Filtros")),
		Label(For("title"), Text("Buscar título")),
		Input(ID("title"), Name("title"), Type("search"), Value(s.Filter.Title),
			Attr("list", "titles"), Placeholder("Comece a digitar...")),
		DataList(ID("titles"), Group(titleOptions)),
		If(s.TitlePeriod.Valid(), P(Class("muted"),
			Text("Período de exibição: "+formatDate(s.TitlePeriod.Min)+" - "+formatDate(s.TitlePeriod.Max)))),
		Label(For("from"), Text("De")),
		Input(ID("from"), Name("from"), Type("date"), Value(dateValue(s.Filter.From)),
			Min(dateValue(s.Bounds.Min)), Max(dateValue(s.Bounds.Max))),
		Label(For("to"), Text("Até")),
		Input(ID("to"), Name("to"), Type("date"), Value(dateValue(s.Filter.To)),
			Min(dateValue(s.Bounds.Min)), Max(dateValue(s.Bounds.Max))),
		Label(For("state"), Text("Estado")),
		multiSelect("state", s.States, s.Filter.States),
		Label(For("municipality"), Text("Município")),
		If(len(s.Municipalities) == 0, P(Class("muted"), Text("Selecione um estado para listar municípios."))),
		If(len(s.Municipalities) > 0, multiSelect("municipality", s.Municipalities, s.Filter.Municipalities)),
		Div(Class("filter-actions"),
			Button(Type("submit"), Class("btn btn-primary"), Text("Aplicar")),
			A(Href(s.Action), Class("btn"), Text("Limpar")),
		),
	)
}

func multiSelect(name string, options, selected []string) Node {
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	nodes := make([]Node, 0, len(options))
	for _, o := range options {
		nodes = append(nodes, Option(Value(o), If(chosen[o], Selected()), Text(o)))
	}
	return Select(ID(name), Name(name), Multiple(), Attr("size", "6"), Group(nodes))
}

func dateValue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func overviewPage(s sidebarData, d overviewData) Node {
	return appPage("Painel de Bilheteria", "home", filterSidebar(s),
		P(Class("muted"), Text("Período: "+formatDate(s.Filter.From)+" - "+formatDate(s.Filter.To))),
		Div(Class("grid"),
			card("Top 10 Bilheteria", chartNode("top-audience", barFigure(d.TopAudience, audienceOf), len(d.TopAudience) == 0)),
			card("Top 10 Sessões", chartNode("top-sessions", barFigure(d.TopSessions, sessionsOf), len(d.TopSessions) == 0)),
			card("Público por Estado", chartNode("by-state", barFigure(d.ByState, audienceOf), len(d.ByState) == 0)),
			card("Média por Sessão (Top 10)", chartNode("top-average", barFigure(d.TopAverage, averageOf), len(d.TopAverage) == 0)),
			card("Evolução Diária de Público", chartNode("daily", dailyFigure(d.Daily, false), len(d.Daily) == 0)),
			card("Média Móvel 7 dias", chartNode("moving-average", movingAverageFigure(d.Daily), len(d.Daily) == 0)),
			card("Top 5 Menos Vistos (Média/Sessão)", chartNode("least-watched", scatterFigure(d.LeastWatched), len(d.LeastWatched) == 0)),
			card("Top 5 Municípios por Público", chartNode("top-municipalities", pieFigure(d.Municipalities), len(d.Municipalities) == 0)),
		),
		rankingTable(d.TopAudience),
	)
}

// rankingTable lists the top titles with a client-side quick filter.
func rankingTable(rows []domain.Ranked) Node {
	if len(rows) == 0 {
		return nil
	}
	trs := make([]Node, 0, len(rows))
	for _, r := range rows {
		trs = append(trs, Tr(
			data.Show(containsExpr(r.Label)),
			Td(A(Href("/ui/title?"+filterQuery(domain.TitleFilter{Title: r.Label}).Encode()), Text(r.Label))),
			Td(Class("num"), Text(formatInt(r.Audience))),
			Td(Class("num"), Text(formatInt(r.Sessions))),
			Td(Class("num"), Text(formatDecimal(r.Average))),
		))
	}
	return Div(
		data.Signals(map[string]any{"q": ""}),
		Div(Class("card"),
			Label(Text("Filtro rápido")),
			Input(Type("text"), data.Bind("q"), Placeholder("Filtrar por título")),
		),
		Div(Class("card table-wrap"),
			Table(
				THead(Tr(Th(Text("Título")), Th(Text("Público")), Th(Text("Sessões")), Th(Text("Média/sessão")))),
				TBody(Group(trs)),
			),
		),
	)
}
