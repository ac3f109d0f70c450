package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/harness"
	"github.com/roach88/vmparity/internal/runner"
)

// Run is a recorded backend run.
type Run struct {
	ID      string
	Session string
	Seq     int64
	harness.RunRecord
}

// BackendSummary counts a session's runs on one backend.
type BackendSummary struct {
	Kind    runner.Kind
	Runs    int
	Aborted int
}

var _ harness.Recorder = (*Store)(nil)

// Record appends rec to the session.
func (s *Store) Record(ctx context.Context, rec harness.RunRecord) error {
	if s.session == "" {
		return errors.New("record run: store has no session")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, session_id, seq, code_hash, method, protocol_version, backend, rendering, aborted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(),
		s.session,
		s.seq+1,
		rec.CodeHash,
		rec.Method,
		int64(rec.Version),
		rec.Kind.String(),
		rec.Rendering,
		rec.Aborted,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	s.seq++

	return nil
}

// ListRuns returns the runs of a session in the order they were recorded.
// Returns an empty slice (not nil) if the session has none.
func (s *Store) ListRuns(ctx context.Context, session string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, code_hash, method, protocol_version, backend, rendering, aborted
		FROM runs
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// LatestSession returns the most recently started session that recorded at
// least one run, or "" if there is none.
func (s *Store) LatestSession(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM sessions
		WHERE EXISTS (SELECT 1 FROM runs WHERE runs.session_id = sessions.id)
		ORDER BY rowid DESC
		LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest session: %w", err)
	}
	return id, nil
}

// Summarize counts a session's runs per backend, in backend priority order.
// Backends with no runs are omitted.
func (s *Store) Summarize(ctx context.Context, session string) ([]BackendSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT backend, COUNT(*), SUM(aborted)
		FROM runs
		WHERE session_id = ?
		GROUP BY backend
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	counts := make(map[runner.Kind]BackendSummary)
	for rows.Next() {
		var (
			name string
			sum  BackendSummary
		)
		if err := rows.Scan(&name, &sum.Runs, &sum.Aborted); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		k, err := runner.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sum.Kind = k
		counts[k] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}

	var out []BackendSummary
	for _, k := range runner.Kinds() {
		if sum, ok := counts[k]; ok {
			out = append(out, sum)
		}
	}
	return out, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r       Run
		version int64
		backend string
	)
	err := rows.Scan(&r.ID, &r.Session, &r.Seq, &r.CodeHash, &r.Method, &version, &backend, &r.Rendering, &r.Aborted)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Version = config.ProtocolVersion(version)
	if r.Kind, err = runner.ParseKind(backend); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}
