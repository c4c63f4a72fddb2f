// Package gpslog reads the vehicle GPS and accelerometer logs and writes
// the filtered GPS log.
//
// The GPS log is a CSV with a header naming at least time, lat, lon and
// frame, in any order. The accelerometer log has no header; its columns are
// frame, acc_x, acc_y, acc_z and velocity.
package gpslog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// FilteredSuffix is appended to the GPS log name for the filtered export.
const FilteredSuffix = "_updated"

var gpsColumns = []string{"time", "lat", "lon", "frame"}

var validate = validator.New()

// ReadFixes parses a GPS log. Every row is range-checked.
func ReadFixes(r io.Reader) ([]trajectory.Fix, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: gps log: %v", trajectory.ErrMalformedInput, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: gps log is empty", trajectory.ErrMalformedInput)
	}

	col := make(map[string]int, len(gpsColumns))
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range gpsColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: gps log has no %q column", trajectory.ErrMalformedInput, name)
		}
	}

	fixes := make([]trajectory.Fix, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		f := trajectory.Fix{Time: strings.TrimSpace(row[col["time"]])}
		if f.Lat, err = parseFloat(row[col["lat"]]); err != nil {
			return nil, rowError(line, "lat", err)
		}
		if f.Lon, err = parseFloat(row[col["lon"]]); err != nil {
			return nil, rowError(line, "lon", err)
		}
		if f.Frame, err = parseInt(row[col["frame"]]); err != nil {
			return nil, rowError(line, "frame", err)
		}
		if err := validate.Struct(f); err != nil {
			return nil, fmt.Errorf("%w: gps log line %d: %v", trajectory.ErrMalformedInput, line, err)
		}
		fixes = append(fixes, f)
	}
	return fixes, nil
}

// ReadAccel parses a headerless accelerometer log.
func ReadAccel(r io.Reader) ([]trajectory.AccelSample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = 5
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: accelerometer log: %v", trajectory.ErrMalformedInput, err)
	}

	out := make([]trajectory.AccelSample, 0, len(rows))
	for n, row := range rows {
		var s trajectory.AccelSample
		if s.Frame, err = parseInt(row[0]); err != nil {
			return nil, rowError(n+1, "frame", err)
		}
		vals := []*float64{&s.AccX, &s.AccY, &s.AccZ, &s.Velocity}
		for i, dst := range vals {
			if *dst, err = parseFloat(row[i+1]); err != nil {
				return nil, rowError(n+1, fmt.Sprintf("column %d", i+2), err)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteFixes writes fixes as a GPS log with a time,lat,lon,frame header.
func WriteFixes(w io.Writer, fixes []trajectory.Fix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(gpsColumns); err != nil {
		return err
	}
	for _, f := range fixes {
		row := []string{
			f.Time,
			strconv.FormatFloat(f.Lat, 'f', -1, 64),
			strconv.FormatFloat(f.Lon, 'f', -1, 64),
			strconv.Itoa(f.Frame),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadFixes reads a GPS log file.
func LoadFixes(fsys fsutil.FileSystem, path string) ([]trajectory.Fix, error) {
	rc, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	fixes, err := ReadFixes(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fixes, nil
}

// LoadAccel reads an accelerometer log file.
func LoadAccel(fsys fsutil.FileSystem, path string) ([]trajectory.AccelSample, error) {
	rc, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	samples, err := ReadAccel(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// ExportFiltered writes the non-NG fixes to dir as <gps name>_updated.<ext>
// and returns the path written.
func ExportFiltered(fsys fsutil.FileSystem, gpsPath, dir string, fixes []trajectory.Fix) (string, error) {
	var buf bytes.Buffer
	if err := WriteFixes(&buf, trajectory.AcceptedFixes(fixes)); err != nil {
		return "", err
	}
	out := filepath.Join(dir, fsutil.WithSuffix(filepath.Base(gpsPath), FilteredSuffix))
	if err := fsutil.WriteFileAtomic(fsys, out, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseInt accepts integral values written as floats, e.g. "12.0".
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(f), nil
}

func rowError(line int, field string, err error) error {
	return fmt.Errorf("%w: line %d %s: %v", trajectory.ErrMalformedInput, line, field, err)
}
