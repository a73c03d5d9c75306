package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/trelloplus/bot-server-go/internal/errors"
	"github.com/trelloplus/bot-server-go/internal/httputil"
	"github.com/trelloplus/bot-server-go/internal/model"
	"github.com/trelloplus/bot-server-go/internal/repository"
	"github.com/trelloplus/bot-server-go/internal/util"
)

// executionFields projects an execution into the admin listing. The order
// of executionFieldOrder is the default column order.
var executionFields = map[string]func(e *model.Execution) any{
	"id":           func(e *model.Execution) any { return e.ID },
	"userId":       func(e *model.Execution) any { return e.UserID },
	"chatId":       func(e *model.Execution) any { return e.ChatID },
	"tgId":         func(e *model.Execution) any { return e.TgID },
	"fromTgId":     func(e *model.Execution) any { return e.FromTgID },
	"messageId":    func(e *model.Execution) any { return e.MessageID },
	"chatType":     func(e *model.Execution) any { return e.ChatType },
	"requestsMade": func(e *model.Execution) any { return e.RequestsMade },
	"fnc":          func(e *model.Execution) any { return e.Fnc },
	"result":       func(e *model.Execution) any { return e.Result },
	"text":         func(e *model.Execution) any { return e.Text },
	"message":      func(e *model.Execution) any { return e.Message },
	"date":         func(e *model.Execution) any { return e.Date.Format(time.RFC3339) },
	"createdAt":    func(e *model.Execution) any { return e.CreatedAt.Format(time.RFC3339) },
}

var executionFieldOrder = []string{
	"id", "userId", "chatId", "tgId", "fromTgId", "messageId", "chatType",
	"requestsMade", "fnc", "result", "text", "message", "date", "createdAt",
}

// AdminHandler is the read-only operator API. Authentication is done by
// middleware.AdminAuthMiddleware.
type AdminHandler struct {
	repos repository.Repos
}

func NewAdminHandler(repos repository.Repos) *AdminHandler {
	return &AdminHandler{repos: repos}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/executions", h.ListExecutions)
	r.Get("/users", h.ListUsers)
	r.Get("/users/{tgId}", h.GetUser)
	return r
}

// ListExecutions filters by tg_id, fnc, result and chat_type. The fields
// parameter selects columns, e.g. fields=id,fnc,result.
func (h *AdminHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ExecutionFilter{
		Fnc:      q.Get("fnc"),
		Result:   q.Get("result"),
		ChatType: model.ChatType(q.Get("chat_type")),
	}
	if raw := q.Get("tg_id"); raw != "" {
		tgID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("tg_id", "must be an integer"))
			return
		}
		filter.TgID = tgID
	}
	if !util.IsValidEnum(filter.ChatType, model.ChatTypes) {
		httputil.WriteError(w, apperrors.InvalidInput("chat_type", "unknown chat type"))
		return
	}

	fields, err := parseFields(q.Get("fields"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p := ParsePagination(r)
	executions, err := h.repos.Executions().List(r.Context(), filter, p.Limit, p.Offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list executions")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}
	total, err := h.repos.Executions().Count(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to count executions")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	items := make([]map[string]any, 0, len(executions))
	for i := range executions {
		row := make(map[string]any, len(fields))
		for _, f := range fields {
			row[f] = executionFields[f](&executions[i])
		}
		items = append(items, row)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  p.Limit,
		"offset": p.Offset,
	})
}

func parseFields(raw string) ([]string, error) {
	if raw == "" {
		return executionFieldOrder, nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := executionFields[f]; !ok {
			return nil, apperrors.InvalidInput("fields", "unknown field "+f).
				WithDetails(map[string]any{"allowed": executionFieldOrder})
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return executionFieldOrder, nil
	}
	return fields, nil
}

// ListUsers pages by id: after_id is the last id of the previous page.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := ParsePagination(r)
	afterID, _ := strconv.ParseInt(q.Get("after_id"), 10, 64)
	filter := model.UserFilter{ActiveOnly: q.Get("active") == "true"}

	users, err := h.repos.Users().List(r.Context(), filter, p.Limit, afterID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list users")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": users,
		"limit": p.Limit,
	})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	tgID, err := strconv.ParseInt(chi.URLParam(r, "tgId"), 10, 64)
	if err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("tgId", "must be an integer"))
		return
	}

	user, err := h.repos.Users().FindByTgID(r.Context(), tgID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get user")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}
	if user == nil {
		httputil.WriteError(w, apperrors.NotFound("User"))
		return
	}

	writeJSON(w, http.StatusOK, user)
}
