package detector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Default tuning values. They are empirical and trade latency for recall on
// camera frames.
const (
	DefaultMinSkip                = 3
	DefaultMaxModules             = 97 // up to version 20
	DefaultCenterQuorum           = 2
	DefaultVerticalTotalFactor    = 2.0
	DefaultHorizontalTotalFactor  = 1.0
	DefaultDiagonalCrossCheck     = true
	DefaultMergeDistanceFactor    = 1.0
	DefaultMaxModuleSizeRatio     = 1.4
	DefaultMaxModuleSizeDeviation = 0.05
	DefaultMinSeparationModules   = 7.0
	DefaultMaxTriangleDistortion  = 0.75
	DefaultModuleSizeWeight       = 1.0
	DefaultConfidenceWeight       = 1.0
	DefaultMaxCandidates          = 16
)

// Tuning holds the heuristics of the finder pattern search. A nil field means
// the corresponding default applies, so a partially filled Tuning (or one
// loaded from a partial JSON file) is always safe to use.
type Tuning struct {
	// Row scanning
	MinSkip    *int `json:"min_skip,omitempty"`
	MaxModules *int `json:"max_modules,omitempty"`

	// Cross-checks. A vertical (horizontal) cross-section is rejected when
	// 5*|total - horizontalTotal| >= factor*horizontalTotal.
	VerticalTotalFactor   *float64 `json:"vertical_total_factor,omitempty"`
	HorizontalTotalFactor *float64 `json:"horizontal_total_factor,omitempty"`
	DiagonalCrossCheck    *bool    `json:"diagonal_cross_check,omitempty"`

	// Clustering
	MergeDistanceFactor *float64 `json:"merge_distance_factor,omitempty"`
	CenterQuorum        *int     `json:"center_quorum,omitempty"`

	// Early termination
	MaxModuleSizeDeviation *float64 `json:"max_module_size_deviation,omitempty"`
	MinSeparationModules   *float64 `json:"min_separation_modules,omitempty"`

	// Selection
	MaxModuleSizeRatio    *float64 `json:"max_module_size_ratio,omitempty"`
	MaxTriangleDistortion *float64 `json:"max_triangle_distortion,omitempty"`
	ModuleSizeWeight      *float64 `json:"module_size_weight,omitempty"`
	ConfidenceWeight      *float64 `json:"confidence_weight,omitempty"`
	MaxCandidates         *int     `json:"max_candidates,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultTuning returns a Tuning with every field set to its default.
func DefaultTuning() *Tuning {
	return &Tuning{
		MinSkip:                ptrInt(DefaultMinSkip),
		MaxModules:             ptrInt(DefaultMaxModules),
		VerticalTotalFactor:    ptrFloat64(DefaultVerticalTotalFactor),
		HorizontalTotalFactor:  ptrFloat64(DefaultHorizontalTotalFactor),
		DiagonalCrossCheck:     ptrBool(DefaultDiagonalCrossCheck),
		MergeDistanceFactor:    ptrFloat64(DefaultMergeDistanceFactor),
		CenterQuorum:           ptrInt(DefaultCenterQuorum),
		MaxModuleSizeDeviation: ptrFloat64(DefaultMaxModuleSizeDeviation),
		MinSeparationModules:   ptrFloat64(DefaultMinSeparationModules),
		MaxModuleSizeRatio:     ptrFloat64(DefaultMaxModuleSizeRatio),
		MaxTriangleDistortion:  ptrFloat64(DefaultMaxTriangleDistortion),
		ModuleSizeWeight:       ptrFloat64(DefaultModuleSizeWeight),
		ConfidenceWeight:       ptrFloat64(DefaultConfidenceWeight),
		MaxCandidates:          ptrInt(DefaultMaxCandidates),
	}
}

// LoadTuning reads a Tuning from a JSON file. Omitted fields keep their
// defaults. The file must have a .json extension and be at most 1 MiB.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	const maxFileSize = 1 << 20
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	t := &Tuning{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return t, nil
}

// Validate reports the first out-of-range field, if any.
func (t *Tuning) Validate() error {
	if t.MinSkip != nil && *t.MinSkip < 1 {
		return fmt.Errorf("min_skip must be at least 1, got %d", *t.MinSkip)
	}
	if t.MaxModules != nil && *t.MaxModules < 21 {
		return fmt.Errorf("max_modules must be at least 21, got %d", *t.MaxModules)
	}
	if t.CenterQuorum != nil && *t.CenterQuorum < 1 {
		return fmt.Errorf("center_quorum must be at least 1, got %d", *t.CenterQuorum)
	}
	if t.MaxCandidates != nil && *t.MaxCandidates < 3 {
		return fmt.Errorf("max_candidates must be at least 3, got %d", *t.MaxCandidates)
	}
	positive := []struct {
		name string
		v    *float64
	}{
		{"vertical_total_factor", t.VerticalTotalFactor},
		{"horizontal_total_factor", t.HorizontalTotalFactor},
		{"merge_distance_factor", t.MergeDistanceFactor},
		{"max_module_size_deviation", t.MaxModuleSizeDeviation},
		{"max_triangle_distortion", t.MaxTriangleDistortion},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", p.name, *p.v)
		}
	}
	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"min_separation_modules", t.MinSeparationModules},
		{"module_size_weight", t.ModuleSizeWeight},
		{"confidence_weight", t.ConfidenceWeight},
	}
	for _, p := range nonNegative {
		if p.v != nil && *p.v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", p.name, *p.v)
		}
	}
	if t.MaxModuleSizeRatio != nil && *t.MaxModuleSizeRatio < 1 {
		return fmt.Errorf("max_module_size_ratio must be at least 1, got %v", *t.MaxModuleSizeRatio)
	}
	return nil
}

// GetMinSkip returns the smallest row stride used before any pattern is found.
func (t *Tuning) GetMinSkip() int {
	if t == nil || t.MinSkip == nil {
		return DefaultMinSkip
	}
	return *t.MinSkip
}

// GetMaxModules returns the largest symbol width, in modules, the initial stride is sized for.
func (t *Tuning) GetMaxModules() int {
	if t == nil || t.MaxModules == nil {
		return DefaultMaxModules
	}
	return *t.MaxModules
}

// GetVerticalTotalFactor returns the tolerance of the vertical cross-check total.
func (t *Tuning) GetVerticalTotalFactor() float64 {
	if t == nil || t.VerticalTotalFactor == nil {
		return DefaultVerticalTotalFactor
	}
	return *t.VerticalTotalFactor
}

// GetHorizontalTotalFactor returns the tolerance of the horizontal cross-check total.
func (t *Tuning) GetHorizontalTotalFactor() float64 {
	if t == nil || t.HorizontalTotalFactor == nil {
		return DefaultHorizontalTotalFactor
	}
	return *t.HorizontalTotalFactor
}

// GetDiagonalCrossCheck reports whether candidates must also pass the diagonal cross-check.
func (t *Tuning) GetDiagonalCrossCheck() bool {
	if t == nil || t.DiagonalCrossCheck == nil {
		return DefaultDiagonalCrossCheck
	}
	return *t.DiagonalCrossCheck
}

// GetMergeDistanceFactor returns the merge distance in multiples of the smaller module size.
func (t *Tuning) GetMergeDistanceFactor() float64 {
	if t == nil || t.MergeDistanceFactor == nil {
		return DefaultMergeDistanceFactor
	}
	return *t.MergeDistanceFactor
}

// GetCenterQuorum returns how many detections a cluster needs before it is selectable.
func (t *Tuning) GetCenterQuorum() int {
	if t == nil || t.CenterQuorum == nil {
		return DefaultCenterQuorum
	}
	return *t.CenterQuorum
}

// GetMaxModuleSizeDeviation returns the module size spread, relative to the total, below which scanning may stop early.
func (t *Tuning) GetMaxModuleSizeDeviation() float64 {
	if t == nil || t.MaxModuleSizeDeviation == nil {
		return DefaultMaxModuleSizeDeviation
	}
	return *t.MaxModuleSizeDeviation
}

// GetMinSeparationModules returns how many modules apart confirmed centers must be before scanning may stop early.
func (t *Tuning) GetMinSeparationModules() float64 {
	if t == nil || t.MinSeparationModules == nil {
		return DefaultMinSeparationModules
	}
	return *t.MinSeparationModules
}

// GetMaxModuleSizeRatio returns the largest ratio between module sizes allowed in one triple.
func (t *Tuning) GetMaxModuleSizeRatio() float64 {
	if t == nil || t.MaxModuleSizeRatio == nil {
		return DefaultMaxModuleSizeRatio
	}
	return *t.MaxModuleSizeRatio
}

// GetMaxTriangleDistortion returns the largest triangle distortion allowed in one triple.
func (t *Tuning) GetMaxTriangleDistortion() float64 {
	if t == nil || t.MaxTriangleDistortion == nil {
		return DefaultMaxTriangleDistortion
	}
	return *t.MaxTriangleDistortion
}

// GetModuleSizeWeight returns the weight of module size spread in a triple's cost.
func (t *Tuning) GetModuleSizeWeight() float64 {
	if t == nil || t.ModuleSizeWeight == nil {
		return DefaultModuleSizeWeight
	}
	return *t.ModuleSizeWeight
}

// GetConfidenceWeight returns the weight of low detection counts in a triple's cost.
func (t *Tuning) GetConfidenceWeight() float64 {
	if t == nil || t.ConfidenceWeight == nil {
		return DefaultConfidenceWeight
	}
	return *t.ConfidenceWeight
}

// GetMaxCandidates returns how many of the most frequent clusters the selector considers.
func (t *Tuning) GetMaxCandidates() int {
	if t == nil || t.MaxCandidates == nil {
		return DefaultMaxCandidates
	}
	return *t.MaxCandidates
}
