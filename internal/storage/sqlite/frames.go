package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// LoadFrames rebuilds the stored records of a run, ordered by frame with
// detections ordered by object id.
func (s *Store) LoadFrames(ctx context.Context, runID string) ([]trajectory.FrameRecord, error) {
	if _, err := s.Run(ctx, runID); err != nil {
		return nil, err
	}

	frames, index, err := s.loadEgo(ctx, runID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, obj_id, x, y, z, latitude, longitude, velocity_kmh, yaw_deg, kind, road, lane
		FROM detections WHERE run_id = ?
		ORDER BY frame, obj_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			frame             int
			d                 trajectory.Detection
			w                 trajectory.Point
			z, lat, lon, v, y sql.NullFloat64
			kindName          string
			road, lane        sql.NullString
		)
		if err := rows.Scan(&frame, &d.ObjectID, &w.X, &w.Y, &z, &lat, &lon, &v, &y, &kindName, &road, &lane); err != nil {
			return nil, err
		}
		w.Z, w.HasZ = z.Float64, z.Valid
		d.World = &w
		d.Latitude, d.Longitude, d.Velocity, d.Yaw = ptr(lat), ptr(lon), ptr(v), ptr(y)
		if d.Kind, err = trajectory.ParseKind(kindName); err != nil {
			return nil, err
		}
		d.RoadCorrection = roadCorrection(road, lane)

		i, ok := index[frame]
		if !ok {
			return nil, fmt.Errorf("%w: run %s object %d at unknown frame %d", trajectory.ErrMalformedInput, runID, d.ObjectID, frame)
		}
		frames[i].Detections = append(frames[i].Detections, d)
	}
	return frames, rows.Err()
}

// loadEgo returns the run's frames with their ego states and an index
// from frame number to slice position.
func (s *Store) loadEgo(ctx context.Context, runID string) ([]trajectory.FrameRecord, map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.frame, f.file, e.frame, e.x, e.y, e.z, e.latitude, e.longitude,
		       e.velocity_kmh, e.yaw_deg, e.acc_x, e.acc_y, e.acc_z, e.road, e.lane
		FROM frames f
		LEFT JOIN ego_states e ON e.run_id = f.run_id AND e.frame = f.frame
		WHERE f.run_id = ?
		ORDER BY f.frame`, runID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var frames []trajectory.FrameRecord
	index := make(map[int]int)
	for rows.Next() {
		var (
			r                    trajectory.FrameRecord
			egoFrame             sql.NullInt64
			x, y, z, lat, lon    sql.NullFloat64
			vel, yaw, ax, ay, az sql.NullFloat64
			road, lane           sql.NullString
		)
		if err := rows.Scan(&r.Frame, &r.File, &egoFrame, &x, &y, &z, &lat, &lon,
			&vel, &yaw, &ax, &ay, &az, &road, &lane); err != nil {
			return nil, nil, err
		}
		if egoFrame.Valid {
			r.Ego = &trajectory.EgoState{
				World:          trajectory.Point{X: x.Float64, Y: y.Float64, Z: z.Float64, HasZ: z.Valid},
				Latitude:       lat.Float64,
				Longitude:      lon.Float64,
				Velocity:       vel.Float64,
				Yaw:            yaw.Float64,
				AccX:           ptr(ax),
				AccY:           ptr(ay),
				AccZ:           ptr(az),
				RoadCorrection: roadCorrection(road, lane),
			}
		}
		index[r.Frame] = len(frames)
		frames = append(frames, r)
	}
	return frames, index, rows.Err()
}

func roadCorrection(road, lane sql.NullString) *trajectory.RoadCorrection {
	if !road.Valid {
		return nil
	}
	return &trajectory.RoadCorrection{Road: road.String, Lane: lane.String}
}
