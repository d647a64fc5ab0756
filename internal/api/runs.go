package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ancine-dash/internal/domain"
)

var errLedgerUnavailable = errors.New("run ledger unavailable")

// Run is the JSON shape of a ledger run.
type Run struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	Status     string     `json:"status"`
	Converted  int        `json:"converted"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// File is the JSON shape of one recorded step result.
type File struct {
	Step    string `json:"step"`
	Input   string `json:"input"`
	Output  string `json:"output"`
	Outcome string `json:"outcome"`
	Rows    int64  `json:"rows"`
	Reason  string `json:"reason,omitempty"`
}

// ListRunsResponse is a page of runs, newest first.
type ListRunsResponse struct {
	Runs          []Run  `json:"runs"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// RunDetailResponse is a run together with its per-file results.
type RunDetailResponse struct {
	Run   Run    `json:"run"`
	Files []File `json:"files"`
}

// ListRuns handles GET /runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, Error{Code: http.StatusServiceUnavailable, Message: errLedgerUnavailable.Error()})
		return
	}
	page := pageFromRequest(r)
	runs, total, err := h.runs.ListRuns(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := ListRunsResponse{
		Runs:          make([]Run, 0, len(runs)),
		NextPageToken: domain.NextPageToken(page.Offset(), page.Limit(), total),
	}
	for i := range runs {
		out.Runs = append(out.Runs, runToAPI(&runs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetRun handles GET /runs/{runID}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, Error{Code: http.StatusServiceUnavailable, Message: errLedgerUnavailable.Error()})
		return
	}
	runID := chi.URLParam(r, "runID")
	run, err := h.runs.GetRun(r.Context(), runID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	files, err := h.runs.ListFiles(r.Context(), runID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := RunDetailResponse{Run: runToAPI(run), Files: make([]File, 0, len(files))}
	for _, f := range files {
		out.Files = append(out.Files, File{
			Step:    string(f.Step),
			Input:   f.Input,
			Output:  f.Output,
			Outcome: string(f.Outcome),
			Rows:    f.Rows,
			Reason:  f.Reason,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func runToAPI(r *domain.IngestionRun) Run {
	return Run{
		ID:         r.ID,
		Trigger:    r.Trigger,
		Status:     string(r.Status),
		Converted:  r.Converted,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

// pageFromRequest extracts a PageRequest from optional max_results/page_token params.
func pageFromRequest(r *http.Request) domain.PageRequest {
	p := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p.MaxResults = n
		}
	}
	return p
}
