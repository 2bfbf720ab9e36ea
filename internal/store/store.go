package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/timeutil"
)

// EntryWindow is the span of the rolling per-room entry count.
const EntryWindow = time.Hour

// Store persists crossing events and door refresh summaries in SQLite.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// EventRecord is a stored crossing event.
type EventRecord struct {
	ID                 int64
	RoomID             string
	TrackID            int
	Direction          geometry.Direction
	Kind               counting.EventKind
	Occupancy          int
	EntryCountLastHour int
	Frame              int
	VideoTime          time.Duration
	RecordedAt         time.Time
}

// RefreshRecord summarizes one door detection refresh.
type RefreshRecord struct {
	Frame      int
	Source     string
	Candidates int
	Accepted   int
	Adopted    bool
	Locked     bool
	Signature  string
	Reasons    map[string]int
}

// Open opens (creating if needed) the database at path and brings its
// schema up to date. A nil clock uses the real clock.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// shared between calls.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Store{db: db, clock: clock}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	log.WithField("path", path).Debug("Event store ready")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores ev and returns the stored row. For entries the rolling count
// includes ev itself.
func (s *Store) Record(ctx context.Context, ev counting.CrossingEvent) (EventRecord, error) {
	now := s.clock.Now()
	rec := EventRecord{
		RoomID:     ev.BoundaryID,
		TrackID:    ev.TrackID,
		Direction:  ev.Direction,
		Kind:       ev.Kind,
		Occupancy:  ev.Occupancy,
		Frame:      ev.Frame,
		VideoTime:  ev.VideoTime,
		RecordedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	prior, err := countEntries(ctx, tx, ev.BoundaryID, now.Add(-EntryWindow))
	if err != nil {
		return rec, err
	}
	rec.EntryCountLastHour = prior
	if ev.Kind == counting.KindEntry {
		rec.EntryCountLastHour++
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cv_events (
			room_id, track_id, direction, kind, occupancy,
			entry_count_last_hour, frame, video_ts_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RoomID, rec.TrackID, string(rec.Direction), string(rec.Kind), rec.Occupancy,
		rec.EntryCountLastHour, rec.Frame, rec.VideoTime.Milliseconds(), now.UnixMilli(),
	)
	if err != nil {
		return rec, fmt.Errorf("insert event: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return rec, err
	}
	if err := tx.Commit(); err != nil {
		return rec, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// HandleEvent records ev and logs the rolling entry count.
func (s *Store) HandleEvent(ctx context.Context, ev counting.CrossingEvent) error {
	rec, err := s.Record(ctx, ev)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"room_id":               rec.RoomID,
		"kind":                  rec.Kind,
		"entry_count_last_hour": rec.EntryCountLastHour,
	}).Debug("Event stored")
	return nil
}

// EntriesLastHour returns the number of entries into roomID within
// EntryWindow of now.
func (s *Store) EntriesLastHour(ctx context.Context, roomID string) (int, error) {
	return countEntries(ctx, s.db, roomID, s.clock.Now().Add(-EntryWindow))
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func countEntries(ctx context.Context, q queryer, roomID string, since time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cv_events WHERE room_id = ? AND kind = ? AND recorded_at >= ?`,
		roomID, string(counting.KindEntry), since.UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries for %s: %w", roomID, err)
	}
	return n, nil
}

// Events returns the most recent events of roomID, newest first. An empty
// roomID matches every room; limit <= 0 returns all.
func (s *Store) Events(ctx context.Context, roomID string, limit int) ([]EventRecord, error) {
	query := `SELECT event_id, room_id, track_id, direction, kind, occupancy,
		entry_count_last_hour, frame, video_ts_ms, recorded_at
		FROM cv_events WHERE (? = '' OR room_id = ?) ORDER BY event_id DESC`
	args := []interface{}{roomID, roomID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var (
			rec        EventRecord
			direction  string
			kind       string
			videoMs    int64
			recordedMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.TrackID, &direction, &kind, &rec.Occupancy,
			&rec.EntryCountLastHour, &rec.Frame, &videoMs, &recordedMs); err != nil {
			return nil, err
		}
		rec.Direction = geometry.Direction(direction)
		rec.Kind = counting.EventKind(kind)
		rec.VideoTime = time.Duration(videoMs) * time.Millisecond
		rec.RecordedAt = time.UnixMilli(recordedMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordRefresh stores a door refresh summary.
func (s *Store) RecordRefresh(ctx context.Context, r RefreshRecord) error {
	reasons := r.Reasons
	if reasons == nil {
		reasons = map[string]int{}
	}
	data, err := json.Marshal(reasons)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO door_refreshes (
			frame, source, candidates, accepted, adopted, locked, signature, reasons, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Frame, r.Source, r.Candidates, r.Accepted, r.Adopted, r.Locked, r.Signature,
		string(data), s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert door refresh: %w", err)
	}
	return nil
}

// Refreshes returns the stored refresh summaries, oldest first.
func (s *Store) Refreshes(ctx context.Context) ([]RefreshRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, source, candidates, accepted, adopted, locked, signature, reasons
		FROM door_refreshes ORDER BY refresh_id`)
	if err != nil {
		return nil, fmt.Errorf("query door refreshes: %w", err)
	}
	defer rows.Close()

	var out []RefreshRecord
	for rows.Next() {
		var r RefreshRecord
		var reasons string
		if err := rows.Scan(&r.Frame, &r.Source, &r.Candidates, &r.Accepted, &r.Adopted, &r.Locked, &r.Signature, &reasons); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(reasons), &r.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
