package store

import (
	"testing"
	"time"

	"github.com/ayusman/nova/internal/command"
)

func TestJournal_RecordsCommitsAndConsumption(t *testing.T) {
	s := newTestStore(t)
	j, err := NewJournal(s, 2*time.Second, 0)
	if err != nil {
		t.Fatalf("NewJournal() error = %v", err)
	}

	now := time.Now()
	j.Committed(command.Event{Action: command.Rotate, Source: command.SourceGesture, Timestamp: now, Seq: 1})
	j.Committed(command.Event{Action: command.Select, Text: "select", Source: command.SourceVoice, Timestamp: now.Add(time.Millisecond), Seq: 2})
	j.Consumed(command.Event{Action: command.Select, Source: command.SourceVoice, Seq: 2})

	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	records, err := s.Commands().List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("journaled %d records, want 2", len(records))
	}

	sel := records[0]
	if sel.Seq != 2 || sel.ConsumedAt == nil {
		t.Errorf("SELECT record = %+v, want seq 2 consumed", sel)
	}
	if sel.SessionID != j.SessionID() {
		t.Errorf("SessionID = %q, want %q", sel.SessionID, j.SessionID())
	}
	want, _ := command.Event{Action: command.Select, Text: "select", Source: command.SourceVoice}.Digest()
	if sel.Digest != want {
		t.Errorf("Digest = %q, want %q", sel.Digest, want)
	}
	if records[1].ConsumedAt != nil {
		t.Error("continuous ROTATE should not be marked consumed")
	}
}

func TestJournal_ConsumeBeforeInsert(t *testing.T) {
	s := newTestStore(t)
	j, err := NewJournal(s, time.Second, 0)
	if err != nil {
		t.Fatalf("NewJournal() error = %v", err)
	}

	j.Consumed(command.Event{Action: command.Reset, Seq: 1})
	j.Committed(command.Event{Action: command.Reset, Source: command.SourceGesture, Timestamp: time.Now(), Seq: 1})
	j.Close()

	records, _ := s.Commands().List(0)
	if len(records) != 1 || records[0].ConsumedAt == nil {
		t.Errorf("records = %+v, want one consumed RESET", records)
	}
}

func TestJournal_DropsAfterClose(t *testing.T) {
	s := newTestStore(t)
	j, err := NewJournal(s, time.Second, 1)
	if err != nil {
		t.Fatalf("NewJournal() error = %v", err)
	}
	j.Close()
	j.Close()

	j.Committed(command.Event{Action: command.Rotate, Source: command.SourceGesture, Seq: 1})
	if j.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", j.Dropped())
	}
}
