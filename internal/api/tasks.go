package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dantiel/aethercodex/internal/core"
)

// taskDTO is the wire representation of a task.
type taskDTO struct {
	ID          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	Plan        string         `json:"plan,omitempty"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Variant     string         `json:"workflow_variant"`
	CurrentStep int            `json:"current_step"`
	PhaseCount  int            `json:"phase_count"`
	ParentID    string         `json:"parent_task_id,omitempty"`
	StepResults map[int]string `json:"step_results,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Log         []string       `json:"log,omitempty"`
}

func toDTO(t *core.Task) taskDTO {
	return taskDTO{
		ID:          string(t.ID),
		Title:       t.Title,
		Plan:        t.Plan,
		Description: t.Description,
		Status:      string(t.Status),
		Variant:     t.Variant.String(),
		CurrentStep: t.CurrentStep,
		PhaseCount:  t.PhaseCount(),
		ParentID:    string(t.ParentID),
		StepResults: t.StepResults,
		CreatedAt:   t.CreatedAt,
		Log:         t.Log,
	}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Plan        string `json:"plan,omitempty"`
	Description string `json:"description,omitempty"`
	Variant     string `json:"workflow_variant,omitempty"`
	ParentID    string `json:"parent_task_id,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toDTO(t))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.Title == "" {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody("title is required"))
		return
	}

	variant := core.VariantSimple
	if req.Variant != "" {
		v, err := core.ParseVariant(req.Variant)
		if err != nil {
			respondJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
			return
		}
		variant = v
	}

	task, err := s.store.Create(r.Context(), core.CreateTaskParams{
		Title:       req.Title,
		Plan:        req.Plan,
		Description: req.Description,
		Variant:     variant,
		ParentID:    core.TaskID(req.ParentID),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	s.notifyCreated(r.Context(), task)
	respondJSON(w, http.StatusCreated, toDTO(task))
}

// notifyCreated fires the task-created notification. Sink failures are
// logged and never surface to the client.
func (s *Server) notifyCreated(ctx context.Context, task *core.Task) {
	if s.sink == nil {
		return
	}
	if err := s.sink.TaskCreated(ctx, task); err != nil {
		s.logger.Warn("task created notification", "task_id", task.ID, "error", err)
	}
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))
	task, err := s.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if task == nil {
		respondError(w, core.ErrTaskNotFound(id))
		return
	}
	respondJSON(w, http.StatusOK, toDTO(task))
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))
	children, err := s.store.ListChildren(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]taskDTO, 0, len(children))
	for _, t := range children {
		out = append(out, toDTO(t))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleRunTask drives the task's phase loop. A retryable stop responds
// 202 so callers can distinguish "re-invoke later" from hard failures.
func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))

	err := s.runner.Run(r.Context(), id)
	task, getErr := s.store.Get(r.Context(), id)
	if getErr != nil {
		respondError(w, getErr)
		return
	}

	body := map[string]interface{}{}
	if task != nil {
		body["task"] = toDTO(task)
	}

	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, body)
	case core.IsRetryable(err):
		body["error"] = err.Error()
		body["retryable"] = true
		respondJSON(w, http.StatusAccepted, body)
	default:
		respondError(w, err)
	}
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// handleSetStatus resets a task's status, the external escape hatch for
// halted tasks.
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	status := core.TaskStatus(req.Status)
	if !core.ValidTaskStatus(status) {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody("unknown task status: "+req.Status))
		return
	}

	task, err := s.store.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if task == nil {
		respondError(w, core.ErrTaskNotFound(id))
		return
	}

	if err := s.store.Update(r.Context(), id, core.TaskPatch{Status: &status}); err != nil {
		respondError(w, err)
		return
	}
	task.Status = status
	respondJSON(w, http.StatusOK, toDTO(task))
}
