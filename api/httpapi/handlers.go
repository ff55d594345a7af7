package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"
	"github.com/wishory-lab/aiworkground/internal/observability"
	"github.com/wishory-lab/aiworkground/internal/queue"
	"github.com/wishory-lab/aiworkground/internal/store"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const maxTitleLen = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string, details string) {
	writeJSON(w, status, apiError{Error: msg, Details: details})
}

type createTaskRequest struct {
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	InputData   json.RawMessage `json:"input_data,omitempty"`
	Priority    string          `json:"priority,omitempty"` // low|normal|high|urgent
}

type taskResponse struct {
	Task store.Task `json:"task"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, caller *store.User) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if !store.ValidType(store.TaskType(req.Type)) {
		writeErr(w, http.StatusBadRequest, "validation_error", "type must be marketing|design|development")
		return
	}
	if req.Category == "" {
		writeErr(w, http.StatusBadRequest, "validation_error", "category is required")
		return
	}
	if req.Title == "" || len(req.Title) > maxTitleLen {
		writeErr(w, http.StatusBadRequest, "validation_error", "title is required (max 500 chars)")
		return
	}

	priority := store.PriorityNormal
	if req.Priority != "" {
		priority = store.TaskPriority(req.Priority)
		if !store.ValidPriority(priority) {
			writeErr(w, http.StatusBadRequest, "validation_error", "priority must be low|normal|high|urgent")
			return
		}
	}

	task, err := s.store.CreateTask(r.Context(), store.CreateTaskParams{
		UserID:      caller.ID,
		Type:        store.TaskType(req.Type),
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		InputData:   []byte(req.InputData),
		Priority:    priority,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	// Fire-and-forget dispatch. The task row is durable either way; an
	// enqueue failure leaves it pending for later re-publication.
	if s.queue != nil {
		hdr := nats.Header{}
		otel.GetTextMapPropagator().Inject(r.Context(), observability.NATSHeaderCarrier{H: hdr})

		err := s.queue.PublishTask(r.Context(), queue.SubjectForPriority(task.Priority), queue.TaskMessage{
			TaskID:   task.ID.String(),
			Priority: string(task.Priority),
		}, hdr)
		if err != nil {
			s.logger.Warn("failed to enqueue task", zap.Error(err), zap.String("task_id", task.ID.String()))
		}
	}

	writeJSON(w, http.StatusCreated, taskResponse{Task: *task})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request, caller *store.User) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	task, err := s.store.GetUserTask(r.Context(), caller.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{Task: *task})
}

type listTasksResponse struct {
	Items  []store.Task `json:"items"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, caller *store.User) {
	qp := r.URL.Query()

	var status *store.TaskStatus
	if v := qp.Get("status"); v != "" {
		sv := store.TaskStatus(v)
		switch sv {
		case store.StatusPending, store.StatusProcessing, store.StatusCompleted, store.StatusFailed:
			status = &sv
		default:
			writeErr(w, http.StatusBadRequest, "validation_error", "invalid status")
			return
		}
	}

	var taskType *store.TaskType
	if v := qp.Get("type"); v != "" {
		tv := store.TaskType(v)
		if !store.ValidType(tv) {
			writeErr(w, http.StatusBadRequest, "validation_error", "invalid type")
			return
		}
		taskType = &tv
	}

	limit, ok := queryInt(w, qp.Get("limit"), 50, 1, 200, "limit must be 1..200")
	if !ok {
		return
	}
	offset, ok := queryInt(w, qp.Get("offset"), 0, 0, 1<<30, "offset must be >= 0")
	if !ok {
		return
	}

	items, err := s.store.ListTasks(r.Context(), store.ListTasksParams{
		UserID: caller.ID,
		Status: status,
		Type:   taskType,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, listTasksResponse{Items: items, Limit: limit, Offset: offset})
}

type listResultsResponse struct {
	Items []store.Result `json:"items"`
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request, caller *store.User) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	// Ownership check before exposing results.
	if _, err := s.store.GetUserTask(r.Context(), caller.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	items, err := s.store.ListResultsByTask(r.Context(), id, 50)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, listResultsResponse{Items: items})
}

type listExecutionsResponse struct {
	Items []store.TaskExecution `json:"items"`
	Limit int                   `json:"limit"`
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request, caller *store.User) {
	id, ok := pathTaskID(w, r)
	if !ok {
		return
	}

	if _, err := s.store.GetUserTask(r.Context(), caller.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	limit, ok := queryInt(w, r.URL.Query().Get("limit"), 50, 1, 200, "limit must be 1..200")
	if !ok {
		return
	}

	items, err := s.store.ListExecutions(r.Context(), id, limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, listExecutionsResponse{Items: items, Limit: limit})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, caller *store.User) {
	// Re-read so total_tasks_completed reflects completions since auth.
	u, err := s.store.GetUser(r.Context(), caller.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request, caller *store.User) {
	stats, err := s.store.GetTaskStats(r.Context(), caller.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func pathTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, http.StatusBadRequest, "validation_error", "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, raw string, def, min, max int, msg string) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		writeErr(w, http.StatusBadRequest, "validation_error", msg)
		return 0, false
	}
	return n, true
}
