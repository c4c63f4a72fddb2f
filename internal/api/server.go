// Package api serves stored trajectory runs for review: JSON endpoints
// for runs and object tracks, and an HTML speed chart per run.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/trajectory.report/internal/httputil"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/units"
	"github.com/banshee-data/trajectory.report/internal/visualize"
)

// ANSI escape codes for the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server answers review requests from a trajectory store. Speeds are
// reported in units.
type Server struct {
	store *sqlite.Store
	units string
}

func NewServer(store *sqlite.Store, speedUnits string) *Server {
	return &Server{store: store, units: speedUnits}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.showRun)
	mux.HandleFunc("/api/runs/{id}/frames", s.showFrames)
	mux.HandleFunc("/api/runs/{id}/objects/{obj}", s.showTrack)
	mux.HandleFunc("/runs/{id}/speed", s.speedChart)
	return mux
}

type runJSON struct {
	ID        string    `json:"id"`
	EPSG      string    `json:"epsg"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	Frames    int       `json:"frames"`
	Objects   []int     `json:"objects,omitempty"`
}

func toRunJSON(r sqlite.Run) runJSON {
	return runJSON{ID: r.ID, EPSG: r.EPSG, Source: r.Source, CreatedAt: r.CreatedAt, Frames: r.Frames}
}

type trackPointJSON struct {
	Frame int      `json:"frame"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Z     *float64 `json:"z"`
	Speed *float64 `json:"speed"`
	Yaw   *float64 `json:"yaw"`
	Kind  string   `json:"interpolation_type"`
}

// writeStoreError maps store failures onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlite.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"units": s.units, "speed_label": units.Label(s.units)})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	runs, err := s.store.Runs(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := make([]runJSON, len(runs))
	for i, run := range runs {
		out[i] = toRunJSON(run)
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	run, err := s.store.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	out := toRunJSON(run)
	if out.Objects, err = s.store.ObjectIDs(r.Context(), run.ID); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, out)
}

// showFrames returns the run's records in the artifact "results" layout.
// Speeds stay in km/h.
func (s *Server) showFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	frames, err := s.store.LoadFrames(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, frames)
}

func (s *Server) showTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	obj, err := strconv.Atoi(r.PathValue("obj"))
	if err != nil || obj <= 0 {
		httputil.BadRequest(w, fmt.Sprintf("invalid object id %q", r.PathValue("obj")))
		return
	}
	track, err := s.store.TrackByObject(r.Context(), r.PathValue("id"), obj)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if len(track) == 0 {
		httputil.NotFound(w, fmt.Sprintf("object %d not in run", obj))
		return
	}

	out := make([]trackPointJSON, len(track))
	for i, p := range track {
		out[i] = trackPointJSON{Frame: p.Frame, X: p.World.X, Y: p.World.Y, Yaw: p.Yaw, Kind: p.Kind.String()}
		if p.World.HasZ {
			z := p.World.Z
			out[i].Z = &z
		}
		if p.Velocity != nil {
			v := units.FromKMPH(*p.Velocity, s.units)
			out[i].Speed = &v
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) speedChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	id := r.PathValue("id")
	frames, err := s.store.LoadFrames(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	page, err := visualize.RenderSpeedHTML(frames, s.units, "Run "+id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteHTML(w, page)
}
