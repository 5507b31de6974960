package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/nova/internal/command"
)

// Session is one hub process lifetime. Sequence numbers restart per session.
type Session struct {
	ID        string
	StartedAt time.Time
	MaxAge    time.Duration
}

// CreateSession records a new session and returns it.
func (s *Store) CreateSession(maxAge time.Duration) (*Session, error) {
	sess := &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		MaxAge:    maxAge,
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, started_at, max_age_ms) VALUES (?, ?, ?)`,
		sess.ID, sess.StartedAt, maxAge.Milliseconds(),
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Command is a journaled event.
type Command struct {
	ID         string
	SessionID  string
	Seq        uint64
	Action     command.Action
	Text       string
	Source     command.Source
	Digest     string
	ReceivedAt time.Time
	ConsumedAt *time.Time
}

// Event converts the record back to the event it journals.
func (c *Command) Event() command.Event {
	return command.Event{
		Action:    c.Action,
		Text:      c.Text,
		Source:    c.Source,
		Timestamp: c.ReceivedAt,
		Seq:       c.Seq,
	}
}

// CommandRepository provides access to the command journal.
type CommandRepository struct {
	db *sql.DB
}

// Commands returns the command repository for this store.
func (s *Store) Commands() *CommandRepository {
	return &CommandRepository{db: s.db}
}

const commandColumns = `id, session_id, seq, action, text, source, digest, received_at, consumed_at`

// Create inserts a journal record. An empty ID is filled with a new UUID.
func (r *CommandRepository) Create(c *Command) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.ReceivedAt = c.ReceivedAt.UTC()

	_, err := r.db.Exec(
		`INSERT INTO commands (`+commandColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		c.ID, c.SessionID, int64(c.Seq), string(c.Action), c.Text, string(c.Source), c.Digest, c.ReceivedAt,
	)
	return err
}

// MarkConsumed records that the event with seq in session was consumed by a pull.
func (r *CommandRepository) MarkConsumed(sessionID string, seq uint64, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE commands SET consumed_at = ?
		 WHERE session_id = ? AND seq = ? AND consumed_at IS NULL`,
		at.UTC(), sessionID, int64(seq),
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a record by its ID.
func (r *CommandRepository) GetByID(id string) (*Command, error) {
	c, err := scanCommand(r.db.QueryRow(
		`SELECT `+commandColumns+` FROM commands WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (r *CommandRepository) List(limit int) ([]*Command, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT `+commandColumns+` FROM commands
		 ORDER BY received_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []*Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return commands, nil
}

// Prune deletes records received before the cutoff and returns how many went.
func (r *CommandRepository) Prune(before time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM commands WHERE received_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the number of journaled records.
func (r *CommandRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM commands`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*Command, error) {
	c := &Command{}
	var seq int64
	var action, source string
	var consumed sql.NullTime

	err := row.Scan(&c.ID, &c.SessionID, &seq, &action, &c.Text, &source, &c.Digest, &c.ReceivedAt, &consumed)
	if err != nil {
		return nil, err
	}

	c.Seq = uint64(seq)
	c.Action = command.Action(action)
	c.Source = command.Source(source)
	if consumed.Valid {
		t := consumed.Time
		c.ConsumedAt = &t
	}
	return c, nil
}
