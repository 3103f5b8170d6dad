package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// Store archives search runs and their evaluated candidates in SQLite so a
// search can be inspected afterwards and resumed.
type Store struct {
	path string
	db   *sql.DB
}

// Run is one search invocation.
type Run struct {
	ID        string
	StartedAt time.Time
	Species   string
	Steps     int
	Seeds     int
	MaxEvals  int
}

// Candidate is one evaluated parameter vector.
type Candidate struct {
	RunID   string
	Eval    int
	Fitness float64
	Quality float64

	Mu           float64
	Sigma        float64
	Dt           float64
	RingCenter   float64
	RingWidth    float64
	FeedbackGain float64
}

// Vector returns the candidate's parameters in ParamVector order.
func (c Candidate) Vector() []float64 {
	return []float64{c.Mu, c.Sigma, c.Dt, c.RingCenter, c.RingWidth, c.FeedbackGain}
}

func candidateFromVector(runID string, eval int, fitness, quality float64, v []float64) Candidate {
	return Candidate{
		RunID:   runID,
		Eval:    eval,
		Fitness: fitness,
		Quality: quality,

		Mu:           v[0],
		Sigma:        v[1],
		Dt:           v[2],
		RingCenter:   v[3],
		RingWidth:    v[4],
		FeedbackGain: v[5],
	}
}

// NewStore creates a store for the given database path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Init opens the database and ensures the schema exists.
func (s *Store) Init(ctx context.Context) error {
	if s.path == "" {
		return errors.New("store path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// SaveRun records a search invocation.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, species, steps, seeds, max_evals)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			species = excluded.species,
			steps = excluded.steps,
			seeds = excluded.seeds,
			max_evals = excluded.max_evals
	`, r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.Species, r.Steps, r.Seeds, r.MaxEvals)
	return err
}

// SaveCandidate records one evaluation.
func (s *Store) SaveCandidate(ctx context.Context, c Candidate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (run_id, eval, fitness, quality,
			mu, sigma, dt, ring_center, ring_width, feedback_gain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, eval) DO UPDATE SET
			fitness = excluded.fitness,
			quality = excluded.quality,
			mu = excluded.mu,
			sigma = excluded.sigma,
			dt = excluded.dt,
			ring_center = excluded.ring_center,
			ring_width = excluded.ring_width,
			feedback_gain = excluded.feedback_gain
	`, c.RunID, c.Eval, c.Fitness, c.Quality,
		c.Mu, c.Sigma, c.Dt, c.RingCenter, c.RingWidth, c.FeedbackGain)
	return err
}

// BestCandidate returns the lowest-fitness candidate across all runs.
func (s *Store) BestCandidate(ctx context.Context) (Candidate, bool, error) {
	var c Candidate
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, eval, fitness, quality,
			mu, sigma, dt, ring_center, ring_width, feedback_gain
		FROM candidates
		ORDER BY fitness ASC
		LIMIT 1
	`).Scan(&c.RunID, &c.Eval, &c.Fitness, &c.Quality,
		&c.Mu, &c.Sigma, &c.Dt, &c.RingCenter, &c.RingWidth, &c.FeedbackGain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Candidate{}, false, nil
		}
		return Candidate{}, false, err
	}
	return c, true, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			species TEXT NOT NULL,
			steps INTEGER NOT NULL,
			seeds INTEGER NOT NULL,
			max_evals INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS candidates (
			run_id TEXT NOT NULL,
			eval INTEGER NOT NULL,
			fitness REAL NOT NULL,
			quality REAL NOT NULL,
			mu REAL NOT NULL,
			sigma REAL NOT NULL,
			dt REAL NOT NULL,
			ring_center REAL NOT NULL,
			ring_width REAL NOT NULL,
			feedback_gain REAL NOT NULL,
			PRIMARY KEY (run_id, eval)
		);
	`)
	return err
}
