package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/trajectory.report/internal/timeutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store is a trajectory database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Run describes one stored artifact.
type Run struct {
	ID        string
	EPSG      string
	Source    string
	CreatedAt time.Time
	Frames    int
}

// TrackPoint is one record of an object's track.
type TrackPoint struct {
	Frame    int
	World    trajectory.Point
	Velocity *float64
	Yaw      *float64
	Kind     trajectory.Kind
}

// Open opens or creates the database at path and brings its schema up to
// date. A nil clock uses the wall clock.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	s := &Store{db: db, clock: clock}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun stores frames as a new run and returns its id.
func (s *Store) SaveRun(ctx context.Context, epsg, source string, frames []trajectory.FrameRecord) (string, error) {
	if err := trajectory.Validate(frames); err != nil {
		return "", err
	}
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, epsg, source, created_unix_nanos) VALUES (?, ?, ?, ?)`,
		id, epsg, source, s.clock.Now().UnixNano()); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	frameStmt, err := tx.PrepareContext(ctx, `INSERT INTO frames (run_id, frame, file) VALUES (?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer frameStmt.Close()
	egoStmt, err := tx.PrepareContext(ctx, `INSERT INTO ego_states
		(run_id, frame, x, y, z, latitude, longitude, velocity_kmh, yaw_deg, acc_x, acc_y, acc_z, road, lane)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer egoStmt.Close()
	detStmt, err := tx.PrepareContext(ctx, `INSERT INTO detections
		(run_id, frame, obj_id, x, y, z, latitude, longitude, velocity_kmh, yaw_deg, kind, road, lane)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer detStmt.Close()

	for _, r := range frames {
		if _, err := frameStmt.ExecContext(ctx, id, r.Frame, r.File); err != nil {
			return "", fmt.Errorf("insert frame %d: %w", r.Frame, err)
		}
		if e := r.Ego; e != nil {
			road, lane := correction(e.RoadCorrection)
			if _, err := egoStmt.ExecContext(ctx, id, r.Frame,
				e.World.X, e.World.Y, elevation(e.World), e.Latitude, e.Longitude, e.Velocity, e.Yaw,
				nullable(e.AccX), nullable(e.AccY), nullable(e.AccZ), road, lane); err != nil {
				return "", fmt.Errorf("insert ego state at frame %d: %w", r.Frame, err)
			}
		}
		for _, d := range r.Detections {
			if d.World == nil {
				return "", fmt.Errorf("%w: frame %d object %d has no world position", trajectory.ErrMalformedInput, r.Frame, d.ObjectID)
			}
			road, lane := correction(d.RoadCorrection)
			if _, err := detStmt.ExecContext(ctx, id, r.Frame, d.ObjectID,
				d.World.X, d.World.Y, elevation(*d.World), nullable(d.Latitude), nullable(d.Longitude),
				nullable(d.Velocity), nullable(d.Yaw), d.Kind.String(), road, lane); err != nil {
				return "", fmt.Errorf("insert object %d at frame %d: %w", d.ObjectID, r.Frame, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.epsg, r.source, r.created_unix_nanos, COUNT(f.frame)
		FROM runs r LEFT JOIN frames f ON f.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.created_unix_nanos DESC, r.run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r     Run
			nanos int64
		)
		if err := rows.Scan(&r.ID, &r.EPSG, &r.Source, &nanos, &r.Frames); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, nanos).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns one run.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	var (
		r     = Run{ID: id}
		nanos int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT r.epsg, r.source, r.created_unix_nanos,
		       (SELECT COUNT(*) FROM frames f WHERE f.run_id = r.run_id)
		FROM runs r WHERE r.run_id = ?`, id).Scan(&r.EPSG, &r.Source, &nanos, &r.Frames)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(0, nanos).UTC()
	return r, nil
}

// DeleteRun removes a run and everything recorded under it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// TrackByObject returns every stored record of obj in run, ordered by
// frame.
func (s *Store) TrackByObject(ctx context.Context, runID string, obj int) ([]TrackPoint, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, x, y, z, velocity_kmh, yaw_deg, kind
		FROM detections WHERE run_id = ? AND obj_id = ?
		ORDER BY frame`, runID, obj)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var track []TrackPoint
	for rows.Next() {
		var (
			p        TrackPoint
			z, v, y  sql.NullFloat64
			kindName string
		)
		if err := rows.Scan(&p.Frame, &p.World.X, &p.World.Y, &z, &v, &y, &kindName); err != nil {
			return nil, err
		}
		p.World.Z, p.World.HasZ = z.Float64, z.Valid
		p.Velocity, p.Yaw = ptr(v), ptr(y)
		if p.Kind, err = trajectory.ParseKind(kindName); err != nil {
			return nil, err
		}
		track = append(track, p)
	}
	return track, rows.Err()
}

// ObjectIDs lists the objects recorded in run.
func (s *Store) ObjectIDs(ctx context.Context, runID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT obj_id FROM detections WHERE run_id = ? ORDER BY obj_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullable(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func elevation(p trajectory.Point) sql.NullFloat64 {
	return sql.NullFloat64{Float64: p.Z, Valid: p.HasZ}
}

func correction(rc *trajectory.RoadCorrection) (sql.NullString, sql.NullString) {
	if rc == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: rc.Road, Valid: true}, sql.NullString{String: rc.Lane, Valid: true}
}
