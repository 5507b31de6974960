package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/nova/internal/command"
	"github.com/ayusman/nova/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store, actions ...command.Action) []*store.Command {
	t.Helper()

	sess, err := s.CreateSession(2 * time.Second)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	var out []*store.Command
	for i, a := range actions {
		c := &store.Command{
			SessionID:  sess.ID,
			Seq:        uint64(i + 1),
			Action:     a,
			Source:     command.SourceGesture,
			Digest:     "d",
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Commands().Create(c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		out = append(out, c)
	}
	return out
}

func TestCommandsHandler_List(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, command.ZoomIn, command.Capture, command.Reset)
	h := NewCommandsHandler(s)

	t.Run("newest first with total", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/commands?limit=2", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var resp listCommandsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Total != 3 || len(resp.Commands) != 2 {
			t.Fatalf("total=%d len=%d, want 3 and 2", resp.Total, len(resp.Commands))
		}
		if resp.Commands[0].Action != "RESET" || resp.Commands[1].Action != "CAPTURE" {
			t.Errorf("order = %s, %s", resp.Commands[0].Action, resp.Commands[1].Action)
		}
		if resp.Commands[0].ConsumedAt != nil {
			t.Error("consumed_at should be null")
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/commands?limit=many", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func TestCommandsHandler_Get(t *testing.T) {
	s := newTestStore(t)
	seeded := seed(t, s, command.Select)
	h := NewCommandsHandler(s)

	req := httptest.NewRequest(http.MethodGet, "/api/commands/"+seeded[0].ID, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp commandResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.ID != seeded[0].ID || resp.Action != "SELECT" || resp.Seq != 1 {
		t.Errorf("response = %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/commands/does-not-exist", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCommandsHandler_Prune(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, command.ZoomIn, command.Capture, command.Reset)
	h := NewCommandsHandler(s)

	req := httptest.NewRequest(http.MethodDelete, "/api/commands?before=2026-06-01T09:01:30Z", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp pruneResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", resp.Deleted)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/commands", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Deleted != 1 {
		t.Errorf("prune all deleted = %d, want 1", resp.Deleted)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/commands?before=yesterday", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad before status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCommandsHandler_MethodNotAllowed(t *testing.T) {
	h := NewCommandsHandler(newTestStore(t))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/commands"},
		{http.MethodPut, "/api/commands"},
		{http.MethodDelete, "/api/commands/abc"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rec.Code, http.StatusMethodNotAllowed)
		}
	}
}
