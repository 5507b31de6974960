package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per hub process lifetime
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			max_age_ms INTEGER NOT NULL
		)`,

		// Commands table - every event committed by the arbiter
		`CREATE TABLE IF NOT EXISTS commands (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL CHECK(source IN ('voice', 'gesture', 'unknown')),
			digest TEXT NOT NULL,
			received_at DATETIME NOT NULL,
			consumed_at DATETIME,
			UNIQUE(session_id, seq)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_commands_received_at ON commands(received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_commands_action ON commands(action)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
