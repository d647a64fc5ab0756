package ui

import (
	"fmt"
	"strconv"
	"strings"

	"ancine-dash/internal/domain"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const (
	datastarSrc = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.7/bundles/datastar.js"
	plotlySrc   = "https://cdn.plot.ly/plotly-2.35.2.min.js"
)

type navItem struct {
	Label string
	Href  string
	Key   string
}

var navItems = []navItem{
	{Label: "Painel", Href: "/ui", Key: "home"},
	{Label: "Ingestões", Href: "/ui/runs", Key: "runs"},
}

func head(title string, charts bool) Node {
	return Head(
		Meta(Charset("utf-8")),
		Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
		TitleEl(Text(title+" | Bilheteria ANCINE")),
		Link(Rel("icon"), Href("data:,")),
		Link(Rel("stylesheet"), Href("/ui/static/app.css")),
		Script(Type("module"), Src(datastarSrc)),
		If(charts, Group{
			Script(Src(plotlySrc)),
			Script(Src("/ui/static/charts.js"), Defer()),
		}),
	)
}

// appPage wraps body in the dashboard shell. sidebar may be nil.
func appPage(title, active string, sidebar Node, body ...Node) Node {
	nav := make([]Node, 0, len(navItems))
	for _, item := range navItems {
		className := "nav-link"
		if item.Key == active {
			className += " active"
		}
		nav = append(nav, A(Href(item.Href), Class(className), Text(item.Label)))
	}

	return HTML(
		Lang("pt-BR"),
		head(title, true),
		Body(
			Main(Class("app-shell"),
				Aside(
					Class("app-sidebar"),
					Div(Class("brand"), Strong(Text("Bilheteria ANCINE"))),
					Nav(Class("app-nav"), Group(nav)),
					If(sidebar != nil, sidebar),
				),
				Section(
					Class("app-main"),
					H1(Class("page-title"), Text(title)),
					Div(Class("content"), Group(body)),
				),
			),
		),
	)
}

func errorPage(title, message string) Node {
	return HTML(
		Lang("pt-BR"),
		head(title, false),
		Body(
			Main(
				Class("layout"),
				H1(Class("page-title"), Text(title)),
				P(Text(message)),
				P(A(Href("/ui"), Text("Voltar ao painel"))),
			),
		),
	)
}

func card(title string, children ...Node) Node {
	return Div(Class("card"), If(title != "", H2(Text(title))), Group(children))
}

func emptyNote(msg string) Node {
	return P(Class("muted"), Text(msg))
}

// containsExpr is a datastar expression that shows an element while the
// quick-filter signal $q is empty or matches value.
func containsExpr(value string) string {
	lower := strings.ToLower(value)
	return "$q === '' || " + strconv.Quote(lower) + ".includes($q.toLowerCase())"
}

func paginationCard(basePath string, page domain.PageRequest, total int64) Node {
	nextToken := domain.NextPageToken(page.Offset(), page.Limit(), total)
	if nextToken == "" {
		return Div(Class("card"), P(Class("muted"), Text(fmt.Sprintf("Exibindo %d de %d registros.", min(page.Limit(), int(total)), total))))
	}
	url := fmt.Sprintf("%s?max_results=%d&page_token=%s", basePath, page.Limit(), nextToken)
	return Div(
		Class("card"),
		P(Class("muted"), Text(fmt.Sprintf("Exibindo até %d de %d registros.", page.Limit(), total))),
		A(Href(url), Text("Próxima página ->")),
	)
}
