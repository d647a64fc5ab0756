package ui

import (
	"encoding/json"
	"time"

	"ancine-dash/internal/domain"
	"ancine-dash/internal/warehouse"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

// figure is a Plotly figure: traces plus layout, serialized into the page
// and drawn by static/charts.js.
type figure struct {
	Data   []map[string]any `json:"data"`
	Layout map[string]any   `json:"layout"`
}

func baseLayout(extra map[string]any) map[string]any {
	l := map[string]any{
		"margin":     map[string]any{"t": 16, "r": 16, "b": 48, "l": 64},
		"separators": ",.",
		"showlegend": false,
		"autosize":   true,
	}
	for k, v := range extra {
		l[k] = v
	}
	return l
}

// chartNode renders an empty container carrying the figure as JSON. An
// empty figure renders the "no data" note instead.
func chartNode(id string, fig figure, empty bool) Node {
	if empty {
		return emptyNote("Sem dados para o período selecionado.")
	}
	spec, err := json.Marshal(fig)
	if err != nil {
		return emptyNote("Gráfico indisponível.")
	}
	return Div(ID(id), Class("chart"), Attr("data-figure", string(spec)))
}

func labelsAndValues(rows []domain.Ranked, value func(domain.Ranked) any) ([]string, []any) {
	labels := make([]string, len(rows))
	values := make([]any, len(rows))
	for i, r := range rows {
		labels[i] = r.Label
		if labels[i] == "" {
			labels[i] = "(sem informação)"
		}
		values[i] = value(r)
	}
	return labels, values
}

func audienceOf(r domain.Ranked) any { return r.Audience }
func sessionsOf(r domain.Ranked) any { return r.Sessions }
func averageOf(r domain.Ranked) any  { return r.Average }

func barFigure(rows []domain.Ranked, value func(domain.Ranked) any) figure {
	labels, values := labelsAndValues(rows, value)
	return figure{
		Data: []map[string]any{{
			"type":         "bar",
			"x":            labels,
			"y":            values,
			"text":         values,
			"textposition": "auto",
		}},
		Layout: baseLayout(map[string]any{"yaxis": map[string]any{"tickformat": ",.0f"}}),
	}
}

func pieFigure(rows []domain.Ranked) figure {
	labels, values := labelsAndValues(rows, audienceOf)
	return figure{
		Data: []map[string]any{{
			"type":     "pie",
			"labels":   labels,
			"values":   values,
			"hole":     0.4,
			"textinfo": "percent+label",
		}},
		Layout: baseLayout(map[string]any{"showlegend": true}),
	}
}

// scatterFigure plots sessions against average audience per session, one
// labelled marker per title.
func scatterFigure(rows []domain.Ranked) figure {
	labels, avgs := labelsAndValues(rows, averageOf)
	_, sessions := labelsAndValues(rows, sessionsOf)
	return figure{
		Data: []map[string]any{{
			"type":         "scatter",
			"mode":         "markers+text",
			"x":            sessions,
			"y":            avgs,
			"text":         labels,
			"textposition": "top center",
		}},
		Layout: baseLayout(map[string]any{
			"xaxis": map[string]any{"title": map[string]any{"text": "Sessões"}},
			"yaxis": map[string]any{"title": map[string]any{"text": "Média por sessão"}},
		}),
	}
}

func dailyFigure(points []domain.DailyPoint, markers bool) figure {
	x := make([]string, len(points))
	y := make([]int64, len(points))
	for i, p := range points {
		x[i] = p.Date.Format(time.DateOnly)
		y[i] = p.Audience
	}
	mode := "lines"
	if markers {
		mode = "lines+markers"
	}
	return figure{
		Data:   []map[string]any{{"type": "scatter", "mode": mode, "x": x, "y": y}},
		Layout: baseLayout(map[string]any{"xaxis": map[string]any{"tickformat": "%d/%m/%Y"}}),
	}
}

// movingAverageFigure draws the moving average with its minimum and maximum
// marked. Days without a full window are gaps in the line.
func movingAverageFigure(points []domain.DailyPoint) figure {
	x := make([]string, len(points))
	y := make([]any, len(points))
	for i, p := range points {
		x[i] = p.Date.Format(time.DateOnly)
		if p.MovingAvg != nil {
			y[i] = *p.MovingAvg
		}
	}
	fig := figure{
		Data:   []map[string]any{{"type": "scatter", "mode": "lines", "x": x, "y": y, "name": "Média móvel"}},
		Layout: baseLayout(map[string]any{"xaxis": map[string]any{"tickformat": "%d/%m/%Y"}}),
	}
	if e, ok := warehouse.SeriesExtremes(points); ok {
		fig.Data = append(fig.Data,
			extremeTrace(e.Min, "Mín", "bottom right"),
			extremeTrace(e.Max, "Máx", "top right"),
		)
	}
	return fig
}

func extremeTrace(e warehouse.Extreme, prefix, position string) map[string]any {
	return map[string]any{
		"type":         "scatter",
		"mode":         "markers+text",
		"x":            []string{e.Date.Format(time.DateOnly)},
		"y":            []float64{e.Value},
		"text":         []string{prefix + " " + ptBR.Sprintf("%.0f", e.Value)},
		"textposition": position,
		"name":         prefix,
	}
}
