package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/p-n-ai/reviserx/internal/catalog"
	"github.com/p-n-ai/reviserx/internal/chat"
	"github.com/p-n-ai/reviserx/internal/engine"
	"github.com/p-n-ai/reviserx/internal/report"
	"github.com/p-n-ai/reviserx/internal/search"
	"github.com/p-n-ai/reviserx/internal/study"
)

const (
	maxBodyBytes  = 64 << 10
	healthTimeout = 3 * time.Second
)

// Handler serves the API routes.
type Handler struct {
	engine *engine.Engine
	checks map[string]HealthCheck
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// Readyz runs every registered health check.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.Warn("readiness check failed", "component", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": h.engine.Categories()})
}

type stateResponse struct {
	Selection      engine.Selection   `json:"selection"`
	Topics         []catalog.Topic    `json:"topics"`
	Questions      []catalog.Question `json:"questions"`
	SearchQuery    string             `json:"search_query"`
	SearchResults  search.Results     `json:"search_results"`
	CurrentSession *study.Session     `json:"current_session"`
}

func (h *Handler) state() stateResponse {
	resp := stateResponse{
		Selection:     h.engine.Selection(),
		Topics:        h.engine.Topics(),
		Questions:     h.engine.Questions(),
		SearchQuery:   h.engine.SearchQuery(),
		SearchResults: h.engine.SearchResults(),
	}
	if sess, ok := h.engine.CurrentSession(); ok {
		resp.CurrentSession = &sess
	}
	return resp
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state())
}

type selectionRequest struct {
	Category   *string `json:"category"`
	TopicID    *string `json:"topic_id"`
	Difficulty *string `json:"difficulty"`
}

// UpdateSelection applies the fields present in the body. Empty strings clear a field.
func (h *Handler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var difficulty catalog.Difficulty
	if req.Difficulty != nil {
		d, ok := catalog.ParseDifficulty(*req.Difficulty)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown difficulty %q", *req.Difficulty))
			return
		}
		difficulty = d
	}
	if req.Category != nil && *req.Category != "" && !h.engine.Catalog().CategoryExists(*req.Category) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", *req.Category))
		return
	}

	ctx := r.Context()
	if req.Category != nil {
		h.engine.SetSelectedCategory(ctx, *req.Category)
	}
	if req.TopicID != nil {
		h.engine.SetSelectedTopic(ctx, *req.TopicID)
	}
	if req.Difficulty != nil {
		h.engine.SetSelectedDifficulty(ctx, difficulty)
	}

	writeJSON(w, http.StatusOK, h.state())
}

func (h *Handler) Topics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"topics": h.engine.Topics()})
}

func (h *Handler) Topic(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cat := h.engine.Catalog()
	t, ok := cat.TopicByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("topic %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topic":          t,
		"sub_topics":     cat.SubTopics(id),
		"question_count": cat.QuestionCount(id),
	})
}

func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"questions": h.engine.Questions()})
}

func (h *Handler) Glossary(w http.ResponseWriter, r *http.Request) {
	all := h.engine.Glossary()
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, map[string]any{
		"terms":   search.FilterGlossary(all, q.Get("q"), q.Get("letter")),
		"letters": search.Letters(all),
	})
}

func (h *Handler) GlossaryTerm(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("term")
	term, ok := h.engine.Catalog().TermByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("glossary term %q not found", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"term":    term,
		"related": search.ResolveRelated(h.engine.Glossary(), term),
	})
}

type searchResponse struct {
	Query   string         `json:"query"`
	Results search.Results `json:"results"`
}

// Search is stateless: it does not change the stored search text.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, searchResponse{Query: q, Results: h.engine.Search(r.Context(), q)})
}

func (h *Handler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.engine.SetSearchQuery(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, searchResponse{Query: h.engine.SearchQuery(), Results: h.engine.SearchResults()})
}

func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"messages": h.engine.ChatHistory()})
}

// SendMessage accepts a user message; the assistant reply is appended later.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, ok := h.engine.SendMessage(req.Content)
	if !ok {
		writeError(w, http.StatusBadRequest, "content must not be blank")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"message": msg})
}

func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": chat.SuggestedQuestions})
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopicID string `json:"topic_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := h.engine.StartSession(r.Context(), strings.TrimSpace(req.TopicID))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("topic %q not found", req.TopicID))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": sess})
}

func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	var current *study.Session
	if sess, ok := h.engine.CurrentSession(); ok {
		current = &sess
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": current})
}

type endSessionRequest struct {
	QuestionsAttempted int `json:"questions_attempted"`
	QuestionsCorrect   int `json:"questions_correct"`
}

// EndSession ends the open session. With none open it reports ended=false. progress is
// null when the ledger could not be updated.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.QuestionsAttempted < 0 || req.QuestionsCorrect < 0 {
		writeError(w, http.StatusBadRequest, "counts must not be negative")
		return
	}
	if req.QuestionsCorrect > req.QuestionsAttempted {
		writeError(w, http.StatusBadRequest, "questions_correct exceeds questions_attempted")
		return
	}

	p, ended := h.engine.EndSession(r.Context(), req.QuestionsAttempted, req.QuestionsCorrect)
	resp := map[string]any{"ended": ended, "progress": nil}
	if p != nil {
		resp["progress"] = h.progressView(*p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": h.engine.Sessions(r.Context())})
}

type progressView struct {
	study.Progress
	TopicName string `json:"topic_name"`
	Accuracy  int    `json:"accuracy"`
}

func (h *Handler) progressView(p study.Progress) progressView {
	name, ok := h.engine.Catalog().TopicName(p.TopicID)
	if !ok {
		name = p.TopicID
	}
	return progressView{Progress: p, TopicName: name, Accuracy: p.Accuracy()}
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records := h.engine.Progress(ctx)
	views := make([]progressView, 0, len(records))
	for _, p := range records {
		views = append(views, h.progressView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"progress": views,
		"summary":  h.engine.ProgressSummary(ctx),
	})
}

// ExportProgress streams the ledger and session history as an xlsx workbook.
func (h *Handler) ExportProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()
	filename := fmt.Sprintf("reviserx-progress-%s.xlsx", now.Format("20060102"))

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	err := report.WriteWorkbook(w, report.Data{
		UserID:      h.engine.UserID(),
		Progress:    h.engine.Progress(ctx),
		Sessions:    h.engine.Sessions(ctx),
		TopicName:   report.TopicNamer(h.engine.Catalog().TopicName),
		GeneratedAt: now,
	})
	if err != nil {
		slog.Error("progress export failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
	}
}
