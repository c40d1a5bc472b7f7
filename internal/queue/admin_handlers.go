package queue

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/camper-configurator/internal/common"
)

// Inspector is the part of *asynq.Inspector the admin endpoints use.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
}

// AdminHandler exposes the archived (dead letter) tasks of a queue and lets
// operators replay them.
type AdminHandler struct {
	Inspector Inspector
	Queue     string
	PageSize  int
	Logger    zerolog.Logger
}

type archivedItem struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Retried      int             `json:"retried"`
	MaxRetry     int             `json:"max_retry"`
	LastError    string          `json:"last_error,omitempty"`
	LastFailedAt *time.Time      `json:"last_failed_at,omitempty"`
}

type replayRequest struct {
	IDs []string `json:"ids"`
}

// ListDLQ returns archived tasks, optionally filtered by kind.
func (h *AdminHandler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "queue inspector unavailable", nil)
		return
	}
	kind := strings.TrimSpace(r.URL.Query().Get("kind"))
	page := parsePage(r)

	tasks, err := h.Inspector.ListArchivedTasks(h.queue(), asynq.PageSize(h.pageSize()), asynq.Page(page))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, err.Error(), nil)
		return
	}
	items := make([]archivedItem, 0, len(tasks))
	for _, t := range tasks {
		if kind != "" && t.Type != kind {
			continue
		}
		item := archivedItem{
			ID:        t.ID,
			Kind:      t.Type,
			Retried:   t.Retried,
			MaxRetry:  t.MaxRetry,
			LastError: t.LastErr,
		}
		if json.Valid(t.Payload) {
			item.Payload = json.RawMessage(t.Payload)
		}
		if !t.LastFailedAt.IsZero() {
			at := t.LastFailedAt.UTC()
			item.LastFailedAt = &at
		}
		items = append(items, item)
	}
	resp := map[string]any{"data": items, "page": page}
	if kind != "" {
		resp["kind"] = kind
	}
	common.JSON(w, http.StatusOK, resp)
}

// ReplayDLQ moves archived tasks back to pending.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "queue inspector unavailable", nil)
		return
	}
	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "invalid payload", nil)
		return
	}
	ids := uniqueStrings(req.IDs)
	if len(ids) == 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidRequest, "ids required", nil)
		return
	}
	replayed := make([]string, 0, len(ids))
	failed := map[string]string{}
	for _, id := range ids {
		if err := h.Inspector.RunTask(h.queue(), id); err != nil {
			failed[id] = err.Error()
			continue
		}
		replayed = append(replayed, id)
	}
	h.Logger.Info().Int("replayed", len(replayed)).Int("failed", len(failed)).Msg("archived tasks replayed")
	common.JSON(w, http.StatusOK, map[string]any{"replayed": replayed, "failed": failed})
}

// Stats reports queue sizes and refreshes the depth gauges.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "queue inspector unavailable", nil)
		return
	}
	info, err := h.Inspector.GetQueueInfo(h.queue())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, err.Error(), nil)
		return
	}
	states := map[string]int{
		"pending":   info.Pending,
		"active":    info.Active,
		"scheduled": info.Scheduled,
		"retry":     info.Retry,
		"archived":  info.Archived,
		"completed": info.Completed,
	}
	for state, n := range states {
		QueueDepth.WithLabelValues(info.Queue, state).Set(float64(n))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"queue":     info.Queue,
		"size":      info.Size,
		"states":    states,
		"processed": info.Processed,
		"failed":    info.Failed,
		"paused":    info.Paused,
	})
}

func (h *AdminHandler) queue() string {
	if h.Queue == "" {
		return DefaultQueue
	}
	return h.Queue
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

func parsePage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
