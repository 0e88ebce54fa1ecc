package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Casts table - one row per classified-and-dispatched gesture
		`CREATE TABLE IF NOT EXISTS casts (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			score REAL NOT NULL,
			points INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			sigil_path TEXT NOT NULL DEFAULT '',
			dispatched INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_casts_label ON casts(label)`,
		`CREATE INDEX IF NOT EXISTS idx_casts_created_at ON casts(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
