package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carlohamalainen/un-ga-documents-go/rag"
	"github.com/carlohamalainen/un-ga-documents-go/store"
)

type errorResponse struct {
	Error string `json:"error"`
	SQL   string `json:"sql,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag())
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	SQL string `json:"sql" validate:"required"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	q := strings.TrimSpace(req.SQL)
	if ok, reason := store.IsQueryAllowed(q); !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: reason})
		return
	}

	res, err := s.db.Query(r.Context(), q, store.MaxRows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type textToSQLRequest struct {
	Question string `json:"question" validate:"required"`
	Execute  bool   `json:"execute"`
}

type textToSQLResponse struct {
	SQL string `json:"sql"`
	*store.Result
	Answer *rag.Answer `json:"answer,omitempty"`
}

func (s *Server) needPipeline(w http.ResponseWriter) bool {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no language model configured"))
		return false
	}
	return true
}

func (s *Server) handleTextToSQL(w http.ResponseWriter, r *http.Request) {
	var req textToSQLRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.needPipeline(w) {
		return
	}
	ctx := r.Context()

	sql, err := s.pipeline.Generator.GenerateSQL(ctx, req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !req.Execute {
		writeJSON(w, http.StatusOK, textToSQLResponse{SQL: sql})
		return
	}

	if ok, reason := store.IsQueryAllowed(sql); !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Generated query not allowed: " + reason, SQL: sql})
		return
	}
	res, err := s.pipeline.DB.Query(ctx, sql, store.MaxRows)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "SQL execution failed: " + err.Error(), SQL: sql})
		return
	}

	ans, err := s.pipeline.Assistant.Answer(ctx, res, req.Question, sql)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), SQL: sql})
		return
	}
	writeJSON(w, http.StatusOK, textToSQLResponse{SQL: sql, Result: res, Answer: &ans})
}

type askRequest struct {
	Question       string `json:"question" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"omitempty,startswith=conv_"`
	RAGType        string `json:"rag_type" validate:"omitempty,oneof=simple multistep"`
}

type askResponse struct {
	ConversationID string     `json:"conversation_id"`
	RAGType        string     `json:"rag_type"`
	TurnNumber     int        `json:"turn_number"`
	SQL            string     `json:"sql"`
	RowCount       int        `json:"row_count"`
	Steps          []rag.Step `json:"steps,omitempty"`
	rag.Answer
}

// handleAsk answers within a conversation. A new conversation is only
// created once the first answer exists, so failed questions leave nothing
// behind.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.needPipeline(w) {
		return
	}

	var prev *rag.Conversation
	ragType := req.RAGType
	if req.ConversationID != "" {
		conv, err := s.convs.Get(req.ConversationID)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		if ragType != "" && ragType != conv.RAGType {
			writeError(w, http.StatusBadRequest, fmt.Errorf("conversation %s is %s", conv.ID, conv.RAGType))
			return
		}
		ragType = conv.RAGType
		prev = &conv
	}

	if ragType == rag.RAGMultistep {
		s.askMultistep(w, r, req.Question, prev)
		return
	}
	s.askSimple(w, r, req.Question, prev)
}

// conversation returns prev, or a new conversation of ragType.
func (s *Server) conversation(prev *rag.Conversation, ragType string) (rag.Conversation, error) {
	if prev != nil {
		return *prev, nil
	}
	return s.convs.Create(ragType)
}

func (s *Server) askSimple(w http.ResponseWriter, r *http.Request, question string, prev *rag.Conversation) {
	out, err := s.pipeline.Ask(r.Context(), question)
	switch {
	case errors.Is(err, store.ErrQueryNotAllowed):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), SQL: out.SQL})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), SQL: out.SQL})
		return
	}

	conv, err := s.conversation(prev, rag.RAGSimple)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	turn := rag.SimpleTurn{
		TurnNumber: conv.TotalTurns + 1,
		Question:   question,
		SQL:        out.SQL,
		Results:    out.Results,
		Answer:     out.Answer.Answer,
		Evidence:   out.Evidence,
		Sources:    out.Sources,
	}
	if err := s.convs.SaveSimpleTurn(conv.ID, turn, out.Sources); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		ConversationID: conv.ID,
		RAGType:        rag.RAGSimple,
		TurnNumber:     turn.TurnNumber,
		SQL:            out.SQL,
		RowCount:       out.Results.RowCount,
		Answer:         out.Answer,
	})
}

func (s *Server) askMultistep(w http.ResponseWriter, r *http.Request, question string, prev *rag.Conversation) {
	if s.pipeline.Multistep == nil {
		writeError(w, http.StatusNotImplemented, errors.New("configured model does not support tool calling"))
		return
	}

	var before rag.Conversation
	if prev != nil {
		before = *prev
	}
	out, err := s.pipeline.Multistep.Answer(r.Context(), question, before.MultistepInput)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	evidence := maps.Clone(before.AccumulatedEvidence)
	if evidence == nil {
		evidence = map[string][]any{}
	}
	for tool, results := range out.Evidence {
		evidence[tool] = slices.Concat(evidence[tool], results)
	}

	conv, err := s.conversation(prev, rag.RAGMultistep)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.convs.SaveMultistepState(conv.ID, out.Transcript, evidence, out.Sources); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		ConversationID: conv.ID,
		RAGType:        rag.RAGMultistep,
		TurnNumber:     conv.TotalTurns + 1,
		RowCount:       out.RowCount,
		Steps:          out.Steps,
		Answer:         out.Answer,
	})
}

type summarizeRequest struct {
	Question string `json:"question" validate:"required"`
	SQL      string `json:"sql" validate:"required"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !s.needPipeline(w) {
		return
	}
	if ok, reason := store.IsQueryAllowed(req.SQL); !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: reason})
		return
	}

	res, err := s.pipeline.DB.Query(r.Context(), req.SQL, store.MaxRows)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "SQL execution failed: " + err.Error(), SQL: req.SQL})
		return
	}
	summary, err := s.pipeline.Assistant.Summarize(r.Context(), res, req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("search index not configured"))
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, errors.New("need q"))
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	res, err := s.search.Search(r.Context(), q, size)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.convs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleConversationStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.convs.Stats())
}

func (s *Server) handleClearConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"cleared": s.convs.ClearAll()})
}
