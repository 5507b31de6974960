package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kaptinlin/jsonschema"

	"github.com/ayusman/nova/internal/arbiter"
	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/logging"
	"github.com/ayusman/nova/internal/server/api"
)

const maxPushBytes = 16 << 10

//go:embed schema/command.schema.json
var commandSchemaJSON []byte

var commandSchema = mustCompileSchema(commandSchemaJSON)

func mustCompileSchema(data []byte) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile(data)
	if err != nil {
		panic(fmt.Sprintf("compile command schema: %v", err))
	}
	return schema
}

type pushRequest struct {
	Action string `json:"action"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

type pushResponse struct {
	Status   string         `json:"status"`
	Received command.Action `json:"received"`
	Seq      uint64         `json:"seq"`
}

// stateResponse is the body of both the consuming and the peeking read.
type stateResponse struct {
	Action     command.Action `json:"action"`
	Text       string         `json:"text"`
	Source     command.Source `json:"source"`
	Age        float64        `json:"age"`
	Transcript string         `json:"transcript"`
	Status     string         `json:"status"`
	Seq        uint64         `json:"seq"`
}

func toStateResponse(snap arbiter.Snapshot) stateResponse {
	return stateResponse{
		Action:     snap.Action,
		Text:       snap.Text,
		Source:     snap.Source,
		Age:        snap.Age.Seconds(),
		Transcript: snap.Transcript,
		Status:     "ONLINE",
		Seq:        snap.Seq,
	}
}

// decodePush validates the raw body against the command schema and resolves
// the action and source names.
func decodePush(body []byte) (command.Event, error) {
	if !json.Valid(body) {
		return command.Event{}, errors.New("invalid JSON")
	}
	if result := commandSchema.ValidateJSON(body); !result.IsValid() {
		return command.Event{}, fmt.Errorf("schema validation failed: %v", result.Errors)
	}

	var req pushRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return command.Event{}, fmt.Errorf("invalid JSON: %w", err)
	}

	action, err := command.ParseAction(req.Action)
	if err != nil {
		return command.Event{}, err
	}
	source, err := command.ParseSource(req.Source)
	if err != nil {
		return command.Event{}, err
	}

	return command.Event{Action: action, Text: req.Text, Source: source}, nil
}

// handlePush handles POST /command.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushBytes))
	if err != nil {
		api.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	ev, err := decodePush(body)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	committed, err := s.config.Arbiter.Push(ev)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, arbiter.ErrBadRequest) {
			status = http.StatusBadRequest
		}
		api.WriteError(w, status, err.Error())
		return
	}

	logging.Infow("command received",
		"action", committed.Action,
		"source", committed.Source,
		"text", committed.Text,
		"seq", committed.Seq,
	)

	api.WriteJSON(w, http.StatusOK, pushResponse{
		Status:   "ok",
		Received: committed.Action,
		Seq:      committed.Seq,
	})
}

// handlePull handles GET /status. One-shot actions are consumed.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.config.Arbiter.Pull()
	if snap.Consumed {
		logging.Debugw("command consumed", "action", snap.Action, "seq", snap.Seq)
	}

	w.Header().Set("Cache-Control", "no-store")
	api.WriteJSON(w, http.StatusOK, toStateResponse(snap))
}

// handlePeek handles GET /api/state without consuming. The ETag changes
// whenever the visible event does.
func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.config.Arbiter.Peek()
	digest, err := snap.Event.Digest()
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Failed to digest state")
		return
	}
	etag := fmt.Sprintf(`"%d-%s"`, snap.Seq, digest[:16])

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	api.WriteJSON(w, http.StatusOK, toStateResponse(snap))
}
