package gpslog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

func TestReadFixes(t *testing.T) {
	t.Parallel()
	in := "frame,time,lat,lon,alt\n" +
		"0,00:00:00,35.681236,139.767125,3.1\n" +
		"30, 00:01:00, 35.681300, 139.767200, 3.2\n" +
		"60.0,00:02:00,35.6814,139.7673,3.0\n"

	got, err := ReadFixes(strings.NewReader(in))
	require.NoError(t, err)

	want := []trajectory.Fix{
		{Time: "00:00:00", Lat: 35.681236, Lon: 139.767125, Frame: 0},
		{Time: "00:01:00", Lat: 35.6813, Lon: 139.7672, Frame: 30},
		{Time: "00:02:00", Lat: 35.6814, Lon: 139.7673, Frame: 60},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadFixes mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFixes_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, in string
	}{
		{"empty", ""},
		{"missing column", "time,lat,frame\n00:00:00,35,0\n"},
		{"bad latitude", "time,lat,lon,frame\n00:00:00,north,139,0\n"},
		{"latitude out of range", "time,lat,lon,frame\n00:00:00,95,139,0\n"},
		{"negative frame", "time,lat,lon,frame\n00:00:00,35,139,-1\n"},
		{"fractional frame", "time,lat,lon,frame\n00:00:00,35,139,1.5\n"},
		{"missing time", "time,lat,lon,frame\n,35,139,1\n"},
		{"ragged row", "time,lat,lon,frame\n00:00:00,35,139\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFixes(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, trajectory.ErrMalformedInput)
		})
	}
}

func TestReadAccel(t *testing.T) {
	t.Parallel()
	got, err := ReadAccel(strings.NewReader("0,0.1,0.2,9.8,12.5\n15,0.0,-0.1,9.7,13\n"))
	require.NoError(t, err)
	want := []trajectory.AccelSample{
		{Frame: 0, AccX: 0.1, AccY: 0.2, AccZ: 9.8, Velocity: 12.5},
		{Frame: 15, AccX: 0, AccY: -0.1, AccZ: 9.7, Velocity: 13},
	}
	assert.Equal(t, want, got)

	_, err = ReadAccel(strings.NewReader("0,0.1,0.2,9.8\n"))
	assert.ErrorIs(t, err, trajectory.ErrMalformedInput)
	_, err = ReadAccel(strings.NewReader("0,x,0.2,9.8,1\n"))
	assert.ErrorIs(t, err, trajectory.ErrMalformedInput)
}

func TestWriteFixes(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteFixes(&buf, []trajectory.Fix{
		{Time: "00:00:00", Lat: 35.5, Lon: 139.25, Frame: 0},
		{Time: "00:01:00", Lat: 35.50001, Lon: 139.25002, Frame: 30},
	}))
	assert.Equal(t, "time,lat,lon,frame\n00:00:00,35.5,139.25,0\n00:01:00,35.50001,139.25002,30\n", buf.String())
}

func TestExportFiltered(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	fixes := []trajectory.Fix{
		{Time: "00:00:00", Lat: 35, Lon: 139, Frame: 0, Status: trajectory.FixOK},
		{Time: "00:01:00", Lat: 36, Lon: 139, Frame: 30, Status: trajectory.FixNG},
		{Time: "00:02:00", Lat: 35.1, Lon: 139, Frame: 60, Status: trajectory.FixTentative},
	}

	out, err := ExportFiltered(mfs, "/logs/gps.csv", "/run", fixes)
	require.NoError(t, err)
	assert.Equal(t, "/run/gps_updated.csv", out)

	got, err := LoadFixes(mfs, out)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{0, 60}, []int{got[0].Frame, got[1].Frame})
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	mfs := fsutil.NewMemoryFileSystem()
	_, err := LoadFixes(mfs, "/nope.csv")
	assert.Error(t, err)
	_, err = LoadAccel(mfs, "/nope.csv")
	assert.Error(t, err)
}
