package ui

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ancine-dash/internal/domain"

	. "maragu.dev/gomponents"
	data "maragu.dev/gomponents-datastar"
	. "maragu.dev/gomponents/html"
)

// RunsList renders the ingestion run history.
func (h *Handler) RunsList(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		renderHTML(w, http.StatusOK, appPage("Ingestões", "runs", nil, card("", emptyNote("Histórico de ingestões indisponível."))))
		return
	}
	page := pageFromRequest(r, 30)
	runs, total, err := h.Runs.ListRuns(r.Context(), page)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	renderHTML(w, http.StatusOK, runsPage(runs, page, total))
}

// RunDetail renders the per-file results of one run.
func (h *Handler) RunDetail(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		h.renderServiceError(w, r, domain.ErrNotFound("run ledger is not configured"))
		return
	}
	runID := chi.URLParam(r, "runID")
	run, err := h.Runs.GetRun(r.Context(), runID)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	files, err := h.Runs.ListFiles(r.Context(), runID)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	renderHTML(w, http.StatusOK, runDetailPage(run, files))
}

func statusClass(s domain.RunStatus) string {
	switch s {
	case domain.RunStatusSucceeded:
		return "label label-success"
	case domain.RunStatusPartial:
		return "label label-attention"
	case domain.RunStatusFailed:
		return "label label-danger"
	default:
		return "label"
	}
}

func runsPage(runs []domain.IngestionRun, page domain.PageRequest, total int64) Node {
	if len(runs) == 0 {
		return appPage("Ingestões", "runs", nil, card("", emptyNote("Nenhuma ingestão registrada. Execute ancine ingest.")))
	}
	rows := make([]Node, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, Tr(
			data.Show(containsExpr(run.ID+" "+run.Trigger+" "+string(run.Status))),
			Td(A(Href("/ui/runs/"+run.ID), Code(Text(shortID(run.ID))))),
			Td(Text(run.Trigger)),
			Td(Span(Class(statusClass(run.Status)), Text(string(run.Status)))),
			Td(Class("num"), Text(strconv.Itoa(run.Converted))),
			Td(Class("num"), Text(strconv.Itoa(run.Skipped))),
			Td(Class("num"), Text(strconv.Itoa(run.Failed))),
			Td(Text(formatTime(run.StartedAt))),
			Td(Text(formatTimePtr(run.FinishedAt))),
		))
	}
	return appPage("Ingestões", "runs", nil,
		Div(
			data.Signals(map[string]any{"q": ""}),
			Div(Class("card"),
				Label(Text("Filtro rápido")),
				Input(Type("text"), data.Bind("q"), Placeholder("Filtrar por id, origem ou status")),
			),
			Div(Class("card table-wrap"),
				Table(
					THead(Tr(
						Th(Text("Execução")), Th(Text("Origem")), Th(Text("Status")),
						Th(Text("Convertidos")), Th(Text("Ignorados")), Th(Text("Falhas")),
						Th(Text("Início")), Th(Text("Fim")),
					)),
					TBody(Group(rows)),
				),
			),
		),
		paginationCard("/ui/runs", page, total),
	)
}

func runDetailPage(run *domain.IngestionRun, files []domain.FileResult) Node {
	rows := make([]Node, 0, len(files))
	for _, f := range files {
		rows = append(rows, Tr(
			data.Show(containsExpr(f.Input+" "+string(f.Outcome)+" "+f.Reason)),
			Td(Text(string(f.Step))),
			Td(Attr("title", f.Input), Text(filepath.Base(f.Input))),
			Td(Text(string(f.Outcome))),
			Td(Class("num"), Text(formatInt(f.Rows))),
			Td(Text(f.Reason)),
		))
	}
	return appPage("Ingestão "+shortID(run.ID), "runs", nil,
		card("Resumo",
			Dl(
				Dt(Text("Status")), Dd(Span(Class(statusClass(run.Status)), Text(string(run.Status)))),
				Dt(Text("Origem")), Dd(Text(run.Trigger)),
				Dt(Text("Início")), Dd(Text(formatTime(run.StartedAt))),
				Dt(Text("Fim")), Dd(Text(formatTimePtr(run.FinishedAt))),
				If(run.Error != "", Group{Dt(Text("Erro")), Dd(Code(Text(run.Error)))}),
			),
		),
		Div(
			data.Signals(map[string]any{"q": ""}),
			Div(Class("card"),
				Label(Text("Filtro rápido")),
				Input(Type("text"), data.Bind("q"), Placeholder("Filtrar por arquivo, resultado ou motivo")),
			),
			Div(Class("card table-wrap"),
				Table(
					THead(Tr(Th(Text("Etapa")), Th(Text("Arquivo")), Th(Text("Resultado")), Th(Text("Linhas")), Th(Text("Motivo")))),
					TBody(Group(rows)),
				),
			),
		),
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
