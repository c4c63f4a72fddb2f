package roadnet

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// TargetsFileName is where the corrector records the lanes it used.
const TargetsFileName = "road_correct_targets.json"

// AllowList maps a road id to its allowed lane ids.
type AllowList map[string]map[string]bool

// NewAllowList builds an allow-list from road/lane pairs.
func NewAllowList(refs []trajectory.RoadCorrection) AllowList {
	a := make(AllowList)
	for _, r := range refs {
		a.Add(r)
	}
	return a
}

// Add allows the lane of r.
func (a AllowList) Add(r trajectory.RoadCorrection) {
	if a[r.Road] == nil {
		a[r.Road] = make(map[string]bool)
	}
	a[r.Road][r.Lane] = true
}

// Has reports whether lane on road is allowed.
func (a AllowList) Has(road, lane string) bool {
	return a[road][lane]
}

// Targets is the correction target document: the lanes the ego and each
// object may be snapped onto.
type Targets struct {
	Self       *TargetSet      `json:"self,omitempty"`
	Detections []ObjectTargets `json:"detections,omitempty" validate:"dive"`
}

// TargetSet is a list of road/lane pairs.
type TargetSet struct {
	Targets []trajectory.RoadCorrection `json:"targets"`
}

// ObjectTargets is the allowed lanes for one object id.
type ObjectTargets struct {
	ID      int                         `json:"id" validate:"gt=0"`
	Targets []trajectory.RoadCorrection `json:"targets"`
}

// SelfAllow returns the ego allow-list, or nil when none is set.
func (t *Targets) SelfAllow() AllowList {
	if t == nil || t.Self == nil || len(t.Self.Targets) == 0 {
		return nil
	}
	return NewAllowList(t.Self.Targets)
}

// ObjectAllow returns the allow-list per object id.
func (t *Targets) ObjectAllow() map[int]AllowList {
	if t == nil {
		return nil
	}
	out := make(map[int]AllowList, len(t.Detections))
	for _, o := range t.Detections {
		a, ok := out[o.ID]
		if !ok {
			a = make(AllowList)
			out[o.ID] = a
		}
		for _, r := range o.Targets {
			a.Add(r)
		}
	}
	return out
}

// DecodeTargets parses a target document.
func DecodeTargets(data []byte) (*Targets, error) {
	var t Targets
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: correction targets: %v", trajectory.ErrMalformedInput, err)
	}
	if err := validate.Struct(t); err != nil {
		return nil, fmt.Errorf("%w: correction targets: %v", trajectory.ErrMalformedInput, err)
	}
	return &t, nil
}

// LoadTargets reads a target document.
func LoadTargets(fsys fsutil.FileSystem, path string) (*Targets, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := DecodeTargets(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// SaveTargets merges update into the document at path, creating it if
// needed. Sections update leaves nil are kept from the existing file.
func SaveTargets(fsys fsutil.FileSystem, path string, update *Targets) error {
	merged := &Targets{}
	if fsys.Exists(path) {
		existing, err := LoadTargets(fsys, path)
		if err != nil {
			return err
		}
		merged = existing
	}
	if update.Self != nil {
		merged.Self = update.Self
	}
	if update.Detections != nil {
		merged.Detections = update.Detections
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(merged); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}

// usage accumulates the distinct lanes each key was snapped onto, in the
// order first used.
type usage[K comparable] struct {
	order []K
	refs  map[K][]trajectory.RoadCorrection
}

func newUsage[K comparable]() *usage[K] {
	return &usage[K]{refs: make(map[K][]trajectory.RoadCorrection)}
}

func (u *usage[K]) add(k K, r trajectory.RoadCorrection) {
	refs, ok := u.refs[k]
	if !ok {
		u.order = append(u.order, k)
	}
	for _, have := range refs {
		if have == r {
			return
		}
	}
	u.refs[k] = append(refs, r)
}
