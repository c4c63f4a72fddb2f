// Package artifact reads and writes the trajectory document that every
// command consumes and produces: a zone code, an opaque camera block and
// the per-frame records.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/geo"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// File names used by the detector and the builder.
const (
	DetectionFileName = "detection_distance_result.json"
	ResultFileName    = "car_abs_pos_result.json"
)

const (
	keyEPSG    = "EPSG"
	keyCamera  = "camera_parameter"
	keyResults = "results"
)

// Document is a decoded artifact. Top-level keys it does not know about
// are kept in Extra and written back unchanged.
type Document struct {
	EPSG            string
	CameraParameter json.RawMessage
	Results         []trajectory.FrameRecord
	Extra           map[string]json.RawMessage
}

// schema lists the keys that must be present before the records are
// decoded in full.
type schema struct {
	Results []schemaRecord `json:"results" validate:"required,dive"`
}

type schemaRecord struct {
	Frame      *int              `json:"frame" validate:"required,gte=0"`
	Detections []schemaDetection `json:"detections" validate:"dive"`
}

type schemaDetection struct {
	ObjectID *int `json:"obj_id" validate:"required,gt=0"`
}

var validate = validator.New()

// Decode parses and checks an artifact. Records must be in strictly
// increasing frame order.
func Decode(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", trajectory.ErrMalformedInput, err)
	}
	if _, ok := top[keyResults]; !ok {
		return nil, fmt.Errorf("%w: missing %q", trajectory.ErrMalformedInput, keyResults)
	}

	var s schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", trajectory.ErrMalformedInput, err)
	}
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("%w: %v", trajectory.ErrMalformedInput, err)
	}

	doc := &Document{Extra: make(map[string]json.RawMessage)}
	for k, v := range top {
		switch k {
		case keyEPSG:
			code, err := decodeEPSG(v)
			if err != nil {
				return nil, err
			}
			doc.EPSG = code
		case keyCamera:
			doc.CameraParameter = v
		case keyResults:
			if err := json.Unmarshal(v, &doc.Results); err != nil {
				return nil, fmt.Errorf("%w: results: %v", trajectory.ErrMalformedInput, err)
			}
		default:
			doc.Extra[k] = v
		}
	}
	if err := trajectory.Validate(doc.Results); err != nil {
		return nil, err
	}
	return doc, nil
}

// decodeEPSG accepts the code as a string or a bare number; null is
// treated as unset.
func decodeEPSG(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: EPSG: %v", trajectory.ErrMalformedInput, err)
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return strconv.Itoa(int(t)), nil
	}
	return "", fmt.Errorf("%w: EPSG must be a string, got %s", trajectory.ErrMalformedInput, raw)
}

// Encode renders the document with two-space indentation.
func (d *Document) Encode() ([]byte, error) {
	top := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		top[k] = v
	}
	if d.EPSG != "" {
		top[keyEPSG] = d.EPSG
	}
	if len(d.CameraParameter) > 0 {
		top[keyCamera] = d.CameraParameter
	}
	results := d.Results
	if results == nil {
		results = []trajectory.FrameRecord{}
	}
	top[keyResults] = results

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(top); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Zone resolves the document's projection zone. A document without one
// cannot be smoothed or corrected.
func (d *Document) Zone() (geo.Zone, error) {
	if d.EPSG == "" {
		return geo.Zone{}, fmt.Errorf("%w: artifact has no EPSG code", trajectory.ErrConfiguration)
	}
	return geo.LookupZone(d.EPSG)
}

// Load reads and decodes the artifact at path.
func Load(fsys fsutil.FileSystem, path string) (*Document, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Save encodes doc and atomically replaces path with it.
func Save(fsys fsutil.FileSystem, path string, doc *Document) error {
	data, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(fsys, path, data, 0o644)
}
