// Package roadnet loads lane centerline documents and snaps trajectory
// positions onto the nearest lane.
//
// Lane coordinates are stored relative to a map offset; adding the offset
// gives world coordinates in the same frame as the trajectory artifact.
// Road and lane ids are opaque strings.
package roadnet

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// Network is a decoded lane document with coordinates in world frame.
type Network struct {
	EPSG   string
	Offset orb.Point
	Lanes  []Lane
}

// Lane is one centerline. Z holds the elevation of each vertex of Line
// when HasZ is set.
type Lane struct {
	Road  string
	ID    string
	Tag   string
	Line  orb.LineString
	Z     []float64
	HasZ  bool
	Bound orb.Bound
}

// Ref returns the lane's road/lane pair.
func (l *Lane) Ref() trajectory.RoadCorrection {
	return trajectory.RoadCorrection{Road: l.Road, Lane: l.ID}
}

// flexString decodes a JSON string or number into its string form.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = flexString(t)
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	case nil:
		*s = ""
	default:
		return fmt.Errorf("expected string or number, got %s", data)
	}
	return nil
}

// flexFloat decodes a JSON number or numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*f = flexFloat(t)
	case string:
		x, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(x)
	default:
		return fmt.Errorf("expected number, got %s", data)
	}
	return nil
}

type networkDoc struct {
	EPSG      flexString  `json:"EPSG" validate:"required"`
	MapOffset []flexFloat `json:"map_offset" validate:"required,len=2"`
	Roads     []roadDoc   `json:"roads" validate:"required,dive"`
}

type roadDoc struct {
	ID    flexString `json:"id" validate:"required"`
	Lanes []laneDoc  `json:"lanes" validate:"required,dive"`
}

type laneDoc struct {
	ID         flexString  `json:"lane_id" validate:"required"`
	Tag        string      `json:"lane"`
	Coordinate [][]float64 `json:"coordinate" validate:"required,min=1,dive,min=2,max=3"`
}

var validate = validator.New()

// DecodeNetwork parses a lane document. Consecutive repeated vertices are
// dropped.
func DecodeNetwork(data []byte) (*Network, error) {
	var doc networkDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: lane document: %v", trajectory.ErrMalformedInput, err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: lane document: %v", trajectory.ErrMalformedInput, err)
	}

	n := &Network{
		EPSG:   string(doc.EPSG),
		Offset: orb.Point{float64(doc.MapOffset[0]), float64(doc.MapOffset[1])},
	}
	for _, road := range doc.Roads {
		for _, ld := range road.Lanes {
			lane := Lane{Road: string(road.ID), ID: string(ld.ID), Tag: ld.Tag, HasZ: true}
			for _, c := range ld.Coordinate {
				p := orb.Point{c[0] + n.Offset[0], c[1] + n.Offset[1]}
				if k := len(lane.Line); k > 0 && lane.Line[k-1].Equal(p) {
					continue
				}
				lane.Line = append(lane.Line, p)
				if len(c) == 3 {
					lane.Z = append(lane.Z, c[2])
				} else {
					lane.Z = append(lane.Z, 0)
					lane.HasZ = false
				}
			}
			lane.Bound = lane.Line.Bound()
			n.Lanes = append(n.Lanes, lane)
		}
	}
	return n, nil
}

// LoadNetwork reads a lane document.
func LoadNetwork(fsys fsutil.FileSystem, path string) (*Network, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n, err := DecodeNetwork(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// Filter returns the lanes allowed by allow, in document order. A nil
// allow-list allows every lane.
func (n *Network) Filter(allow AllowList) []Lane {
	if allow == nil {
		return n.Lanes
	}
	var out []Lane
	for _, l := range n.Lanes {
		if allow.Has(l.Road, l.ID) {
			out = append(out, l)
		}
	}
	return out
}
