package store

import (
	"database/sql"
	"errors"
	"time"
)

// Cast is one classified gesture: the winning label, its score, trajectory
// metadata, and where the archived sigil image lives (if archived).
type Cast struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Score      float64   `json:"score"`
	Points     int       `json:"points"`
	DurationMs int64     `json:"duration_ms"`
	SigilPath  string    `json:"sigil_path,omitempty"`
	Dispatched bool      `json:"dispatched"`
	CreatedAt  time.Time `json:"created_at"`
}

// CastRepository provides CRUD operations for casts.
type CastRepository struct {
	db *sql.DB
}

// Casts returns the cast repository for this store.
func (s *Store) Casts() *CastRepository {
	return &CastRepository{db: s.db}
}

// Create inserts a new cast into the database.
func (r *CastRepository) Create(c *Cast) error {
	c.CreatedAt = time.Now()

	dispatched := 0
	if c.Dispatched {
		dispatched = 1
	}

	_, err := r.db.Exec(
		`INSERT INTO casts (id, label, score, points, duration_ms, sigil_path, dispatched, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Label, c.Score, c.Points, c.DurationMs, c.SigilPath, dispatched, c.CreatedAt,
	)
	return err
}

// GetByID retrieves a cast by its ID.
func (r *CastRepository) GetByID(id string) (*Cast, error) {
	c := &Cast{}
	var dispatched int

	err := r.db.QueryRow(
		`SELECT id, label, score, points, duration_ms, sigil_path, dispatched, created_at
		 FROM casts WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Label, &c.Score, &c.Points, &c.DurationMs, &c.SigilPath, &dispatched, &c.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c.Dispatched = dispatched != 0
	return c, nil
}

// List retrieves the most recent casts, newest first, up to limit.
// A limit of 0 or less returns everything.
func (r *CastRepository) List(limit int) ([]*Cast, error) {
	query := `SELECT id, label, score, points, duration_ms, sigil_path, dispatched, created_at
	          FROM casts ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var casts []*Cast
	for rows.Next() {
		c := &Cast{}
		var dispatched int

		err := rows.Scan(&c.ID, &c.Label, &c.Score, &c.Points, &c.DurationMs, &c.SigilPath, &dispatched, &c.CreatedAt)
		if err != nil {
			return nil, err
		}

		c.Dispatched = dispatched != 0
		casts = append(casts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return casts, nil
}

// CountByLabel returns how many casts exist per label.
func (r *CastRepository) CountByLabel() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT label, COUNT(*) FROM casts GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}

	return counts, rows.Err()
}

// Delete removes a cast from the database by its ID.
func (r *CastRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM casts WHERE id = ?`, id)
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
