// Package sqlite is the embedded store backend, built on the pure-Go modernc driver
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/poldna/internal/logger"
	"github.com/ppiankov/poldna/internal/model"
	"github.com/ppiankov/poldna/internal/store"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Store persists everything in a single SQLite file
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// Option configures the store
type Option func(*Store)

// WithLogger sets the logger used for failed operations
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.log = logger.OrNop(l).Named("sqlite")
	}
}

// New opens (and migrates) the database at path
func New(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS legislators (
			id     TEXT PRIMARY KEY,
			name   TEXT    NOT NULL DEFAULT '',
			party  TEXT    NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS voting_events (
			id          TEXT PRIMARY KEY,
			title       TEXT    NOT NULL,
			category    TEXT    NOT NULL DEFAULT 'Other',
			weight      REAL,
			categorized INTEGER NOT NULL DEFAULT 0,
			aye_count   INTEGER NOT NULL DEFAULT 0,
			nay_count   INTEGER NOT NULL DEFAULT 0,
			held_at     TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS vote_casts (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			legislator_id TEXT NOT NULL,
			event_id      TEXT NOT NULL,
			vote_type     TEXT NOT NULL,
			UNIQUE (legislator_id, event_id)
		);

		CREATE INDEX IF NOT EXISTS idx_votes_event ON vote_casts(event_id);

		CREATE TABLE IF NOT EXISTS profiles (
			legislator_id        TEXT PRIMARY KEY,
			party                TEXT    NOT NULL,
			axes                 TEXT    NOT NULL,
			axis_votes           TEXT    NOT NULL,
			total_votes_analyzed INTEGER NOT NULL,
			source               TEXT    NOT NULL,
			last_updated         TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS party_aggregates (
			party               TEXT PRIMARY KEY,
			cohesion            REAL    NOT NULL,
			cohesion_events     INTEGER NOT NULL,
			polarization        REAL    NOT NULL,
			polarization_vector TEXT    NOT NULL,
			pivot               REAL    NOT NULL,
			topic_ownership     TEXT    NOT NULL,
			owned_category      TEXT    NOT NULL DEFAULT '',
			mp_count            INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS candidate_responses (
			legislator_id  TEXT    NOT NULL,
			question       TEXT    NOT NULL,
			response_value INTEGER NOT NULL,
			category       TEXT    NOT NULL,
			weight         REAL    NOT NULL,
			PRIMARY KEY (legislator_id, question)
		);

		CREATE TABLE IF NOT EXISTS alerts (
			legislator_id TEXT NOT NULL,
			event_id      TEXT NOT NULL,
			id            TEXT NOT NULL,
			category      TEXT NOT NULL,
			promise_value REAL NOT NULL,
			vote_value    REAL NOT NULL,
			deviation     REAL NOT NULL,
			severity      TEXT NOT NULL,
			detected_at   TEXT NOT NULL,
			PRIMARY KEY (legislator_id, event_id)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) logError(ctx context.Context, event string, err error, fields ...logger.Field) error {
	s.log.Error(ctx, "store operation failed", append([]logger.Field{logger.String("event", event), logger.Error(err)}, fields...)...)
	return err
}

// ─── Votes ──────────────────────────────────────────────────────────────────

// Snapshot reads all three tables inside one transaction
func (s *Store) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snap := &model.Snapshot{}

	rows, err := tx.QueryContext(ctx, `SELECT id, name, party, active FROM legislators ORDER BY id`)
	if err != nil {
		return nil, s.logError(ctx, "snapshot_legislators_failed", err)
	}
	for rows.Next() {
		var l model.Legislator
		if err := rows.Scan(&l.ID, &l.Name, &l.Party, &l.Active); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan legislator: %w", err)
		}
		snap.Legislators = append(snap.Legislators, l)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, eventSelect+` ORDER BY id`)
	if err != nil {
		return nil, s.logError(ctx, "snapshot_events_failed", err)
	}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		snap.Events = append(snap.Events, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = tx.QueryContext(ctx, `SELECT legislator_id, event_id, vote_type FROM vote_casts ORDER BY seq`)
	if err != nil {
		return nil, s.logError(ctx, "snapshot_votes_failed", err)
	}
	for rows.Next() {
		var v model.VoteCast
		var vt string
		if err := rows.Scan(&v.LegislatorID, &v.EventID, &vt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.Type = model.VoteType(vt)
		snap.Votes = append(snap.Votes, v)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return snap, nil
}

const eventSelect = `SELECT id, title, category, weight, categorized, aye_count, nay_count, held_at FROM voting_events`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.VotingEvent, error) {
	var e model.VotingEvent
	var category, heldAt string
	var weight sql.NullFloat64
	if err := row.Scan(&e.ID, &e.Title, &category, &weight, &e.Categorized, &e.AyeCount, &e.NayCount, &heldAt); err != nil {
		return e, err
	}
	e.Category = model.Category(category)
	if weight.Valid {
		w := weight.Float64
		e.Weight = &w
	}
	t, err := parseTime(heldAt)
	if err != nil {
		return e, fmt.Errorf("event %s held_at: %w", e.ID, err)
	}
	e.HeldAt = t
	return e, nil
}

func (s *Store) Event(ctx context.Context, id string) (model.VotingEvent, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, eventSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return e, fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return e, s.logError(ctx, "get_event_failed", err, logger.String("event_id", id))
	}
	return e, nil
}

func (s *Store) UpsertLegislators(ctx context.Context, legislators []model.Legislator) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, l := range legislators {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO legislators (id, name, party, active) VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET name = excluded.name, party = excluded.party, active = excluded.active`,
				l.ID, l.Name, l.Party, l.Active,
			); err != nil {
				return s.logError(ctx, "upsert_legislator_failed", err, logger.String("legislator_id", l.ID))
			}
		}
		return nil
	})
}

func (s *Store) UpsertEvents(ctx context.Context, events []model.VotingEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range events {
			category := e.Category
			if category == "" {
				category = model.CategoryOther
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO voting_events (id, title, category, weight, categorized, aye_count, nay_count, held_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					title = excluded.title,
					aye_count = excluded.aye_count,
					nay_count = excluded.nay_count,
					held_at = excluded.held_at`,
				e.ID, e.Title, string(category), nullableWeight(e.Weight), e.Categorized, e.AyeCount, e.NayCount, formatTime(e.HeldAt),
			); err != nil {
				return s.logError(ctx, "upsert_event_failed", err, logger.String("event_id", e.ID))
			}
		}
		return nil
	})
}

func (s *Store) AppendVotes(ctx context.Context, votes []model.VoteCast) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, v := range votes {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO vote_casts (legislator_id, event_id, vote_type) VALUES (?, ?, ?)`,
				v.LegislatorID, v.EventID, string(v.Type),
			); err != nil {
				return s.logError(ctx, "append_vote_failed", err,
					logger.String("legislator_id", v.LegislatorID),
					logger.String("event_id", v.EventID),
				)
			}
		}
		return nil
	})
}

func (s *Store) UpdateCategory(ctx context.Context, eventID string, c model.Categorization, force bool) (bool, error) {
	var applied bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := scanEvent(tx.QueryRowContext(ctx, eventSelect+` WHERE id = ?`, eventID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("event %s: %w", eventID, store.ErrNotFound)
		}
		if err != nil {
			return s.logError(ctx, "update_category_read_failed", err, logger.String("event_id", eventID))
		}
		if !store.CanUpdateCategory(e, force) {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE voting_events SET category = ?, weight = ?, categorized = 1 WHERE id = ?`,
			string(c.Category), c.Weight, eventID,
		); err != nil {
			return s.logError(ctx, "update_category_failed", err, logger.String("event_id", eventID))
		}
		applied = true
		return nil
	})
	return applied, err
}

// ─── Profiles ───────────────────────────────────────────────────────────────

// Publish swaps the profile and party tables inside a single transaction
func (s *Store) Publish(ctx context.Context, profiles []model.Profile, parties []model.PartyAggregate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
			return s.logError(ctx, "publish_clear_profiles_failed", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM party_aggregates`); err != nil {
			return s.logError(ctx, "publish_clear_parties_failed", err)
		}

		for _, p := range profiles {
			axes, _ := json.Marshal(p.Axes)
			counts, _ := json.Marshal(p.AxisVotes)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO profiles (legislator_id, party, axes, axis_votes, total_votes_analyzed, source, last_updated)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				p.LegislatorID, p.Party, string(axes), string(counts), p.TotalVotesAnalyzed, string(p.Source), formatTime(p.LastUpdated),
			); err != nil {
				return s.logError(ctx, "publish_profile_failed", err, logger.String("legislator_id", p.LegislatorID))
			}
		}

		for _, a := range parties {
			vec, _ := json.Marshal(a.PolarizationVector)
			topics, _ := json.Marshal(a.TopicOwnership)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO party_aggregates (party, cohesion, cohesion_events, polarization, polarization_vector,
					pivot, topic_ownership, owned_category, mp_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				a.Party, a.Cohesion, a.CohesionEvents, a.Polarization, string(vec),
				a.Pivot, string(topics), string(a.OwnedCategory), a.MPCount,
			); err != nil {
				return s.logError(ctx, "publish_party_failed", err, logger.String("party", a.Party))
			}
		}
		return nil
	})
}

const profileSelect = `SELECT legislator_id, party, axes, axis_votes, total_votes_analyzed, source, last_updated FROM profiles`

func scanProfile(row scanner) (model.Profile, error) {
	var p model.Profile
	var axes, counts, source, updated string
	if err := row.Scan(&p.LegislatorID, &p.Party, &axes, &counts, &p.TotalVotesAnalyzed, &source, &updated); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(axes), &p.Axes); err != nil {
		return p, fmt.Errorf("profile %s axes: %w", p.LegislatorID, err)
	}
	if err := json.Unmarshal([]byte(counts), &p.AxisVotes); err != nil {
		return p, fmt.Errorf("profile %s axis votes: %w", p.LegislatorID, err)
	}
	p.Source = model.ProfileSource(source)
	t, err := parseTime(updated)
	if err != nil {
		return p, err
	}
	p.LastUpdated = t
	return p, nil
}

func (s *Store) Profiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, profileSelect+` ORDER BY legislator_id`)
	if err != nil {
		return nil, s.logError(ctx, "list_profiles_failed", err)
	}
	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	return out, closeRows(rows)
}

func (s *Store) Profile(ctx context.Context, legislatorID string) (model.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, profileSelect+` WHERE legislator_id = ?`, legislatorID))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("profile %s: %w", legislatorID, store.ErrNotFound)
	}
	return p, err
}

func (s *Store) PartyAggregates(ctx context.Context) ([]model.PartyAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT party, cohesion, cohesion_events, polarization, polarization_vector, pivot,
			topic_ownership, owned_category, mp_count
		FROM party_aggregates ORDER BY party`)
	if err != nil {
		return nil, s.logError(ctx, "list_parties_failed", err)
	}
	var out []model.PartyAggregate
	for rows.Next() {
		var a model.PartyAggregate
		var vec, topics, owned string
		if err := rows.Scan(&a.Party, &a.Cohesion, &a.CohesionEvents, &a.Polarization, &vec, &a.Pivot, &topics, &owned, &a.MPCount); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan party: %w", err)
		}
		if err := json.Unmarshal([]byte(vec), &a.PolarizationVector); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("party %s vector: %w", a.Party, err)
		}
		if err := json.Unmarshal([]byte(topics), &a.TopicOwnership); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("party %s topics: %w", a.Party, err)
		}
		a.OwnedCategory = model.Category(owned)
		out = append(out, a)
	}
	return out, closeRows(rows)
}

// ─── Questionnaires and alerts ──────────────────────────────────────────────

func (s *Store) UpsertResponses(ctx context.Context, responses []model.CandidateResponse) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range responses {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO candidate_responses (legislator_id, question, response_value, category, weight)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(legislator_id, question) DO UPDATE SET
					response_value = excluded.response_value,
					category = excluded.category,
					weight = excluded.weight`,
				r.LegislatorID, r.Question, r.Value, string(r.Category), r.Weight,
			); err != nil {
				return s.logError(ctx, "upsert_response_failed", err, logger.String("legislator_id", r.LegislatorID))
			}
		}
		return nil
	})
}

func (s *Store) Responses(ctx context.Context) ([]model.CandidateResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT legislator_id, question, response_value, category, weight
		FROM candidate_responses ORDER BY legislator_id, question`)
	if err != nil {
		return nil, s.logError(ctx, "list_responses_failed", err)
	}
	var out []model.CandidateResponse
	for rows.Next() {
		var r model.CandidateResponse
		var category string
		if err := rows.Scan(&r.LegislatorID, &r.Question, &r.Value, &category, &r.Weight); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.Category = model.Category(category)
		out = append(out, r)
	}
	return out, closeRows(rows)
}

func (s *Store) UpsertAlerts(ctx context.Context, alerts []model.Alert) (int, error) {
	created := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range alerts {
			var exists int
			err := tx.QueryRowContext(ctx,
				`SELECT 1 FROM alerts WHERE legislator_id = ? AND event_id = ?`, a.LegislatorID, a.EventID,
			).Scan(&exists)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return s.logError(ctx, "upsert_alert_read_failed", err, logger.String("alert_id", a.ID))
			}
			if errors.Is(err, sql.ErrNoRows) {
				created++
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO alerts (legislator_id, event_id, id, category, promise_value, vote_value, deviation, severity, detected_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(legislator_id, event_id) DO UPDATE SET
					category = excluded.category,
					promise_value = excluded.promise_value,
					vote_value = excluded.vote_value,
					deviation = excluded.deviation,
					severity = excluded.severity`,
				a.LegislatorID, a.EventID, a.ID, string(a.Category), a.PromiseValue, a.VoteValue,
				a.Deviation, string(a.Severity), formatTime(a.DetectedAt),
			); err != nil {
				return s.logError(ctx, "upsert_alert_failed", err, logger.String("alert_id", a.ID))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (s *Store) Alerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, legislator_id, event_id, category, promise_value, vote_value, deviation, severity, detected_at
		FROM alerts ORDER BY legislator_id, event_id`)
	if err != nil {
		return nil, s.logError(ctx, "list_alerts_failed", err)
	}
	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var category, severity, detected string
		if err := rows.Scan(&a.ID, &a.LegislatorID, &a.EventID, &category, &a.PromiseValue, &a.VoteValue,
			&a.Deviation, &severity, &detected); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Category = model.Category(category)
		a.Severity = model.Severity(severity)
		if a.DetectedAt, err = parseTime(detected); err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, a)
	}
	return out, closeRows(rows)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

func nullableWeight(w *float64) any {
	if w == nil {
		return nil
	}
	return *w
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

var _ store.Store = (*Store)(nil)
