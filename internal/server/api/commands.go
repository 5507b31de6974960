package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/nova/internal/store"
)

const defaultListLimit = 50

// CommandsHandler serves the command journal.
type CommandsHandler struct {
	store *store.Store
}

// NewCommandsHandler creates a new CommandsHandler with the given store.
func NewCommandsHandler(s *store.Store) *CommandsHandler {
	return &CommandsHandler{store: s}
}

// ServeHTTP routes /api/commands and /api/commands/{id}.
func (h *CommandsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/commands"), "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodDelete:
			h.prune(w, r)
		default:
			WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h.get(w, id)
}

type commandResponse struct {
	ID         string  `json:"id"`
	Session    string  `json:"session"`
	Seq        uint64  `json:"seq"`
	Action     string  `json:"action"`
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Digest     string  `json:"digest"`
	ReceivedAt string  `json:"received_at"`
	ConsumedAt *string `json:"consumed_at"`
}

type listCommandsResponse struct {
	Commands []commandResponse `json:"commands"`
	Total    int               `json:"total"`
}

type pruneResponse struct {
	Deleted int64 `json:"deleted"`
}

func toResponse(c *store.Command) commandResponse {
	resp := commandResponse{
		ID:         c.ID,
		Session:    c.SessionID,
		Seq:        c.Seq,
		Action:     string(c.Action),
		Text:       c.Text,
		Source:     string(c.Source),
		Digest:     c.Digest,
		ReceivedAt: c.ReceivedAt.Format(time.RFC3339Nano),
	}
	if c.ConsumedAt != nil {
		s := c.ConsumedAt.Format(time.RFC3339Nano)
		resp.ConsumedAt = &s
	}
	return resp
}

// list handles GET /api/commands?limit=N, newest first.
func (h *CommandsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	commands, err := h.store.Commands().List(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list commands")
		return
	}
	total, err := h.store.Commands().Count()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to count commands")
		return
	}

	response := listCommandsResponse{
		Commands: make([]commandResponse, 0, len(commands)),
		Total:    total,
	}
	for _, c := range commands {
		response.Commands = append(response.Commands, toResponse(c))
	}

	WriteJSON(w, http.StatusOK, response)
}

// get handles GET /api/commands/{id}.
func (h *CommandsHandler) get(w http.ResponseWriter, id string) {
	c, err := h.store.Commands().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Command not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get command")
		return
	}

	WriteJSON(w, http.StatusOK, toResponse(c))
}

// prune handles DELETE /api/commands?before=RFC3339. Without before, every
// record is removed.
func (h *CommandsHandler) prune(w http.ResponseWriter, r *http.Request) {
	before := time.Now().Add(time.Second)
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid before timestamp")
			return
		}
		before = t
	}

	n, err := h.store.Commands().Prune(before)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to prune commands")
		return
	}

	WriteJSON(w, http.StatusOK, pruneResponse{Deleted: n})
}
