package journal

// runMigrations executes all database migrations.
func (j *Journal) runMigrations() error {
	migrations := []string{
		// One row per run of the control loop
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Takeoffs, landings and warnings within a session
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			at DATETIME NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('takeoff', 'land', 'warning', 'error')),
			detail TEXT NOT NULL DEFAULT '',
			battery_pct INTEGER NOT NULL DEFAULT 0,
			altitude_cm INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
