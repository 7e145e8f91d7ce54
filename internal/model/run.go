// Package model defines the records persisted for classification runs.
package model

import (
	"time"

	"github.com/sells-group/choropleth/internal/classify"
)

// Run is a saved classification of one column.
type Run struct {
	ID          string    `json:"id" yaml:"id"`
	Column      string    `json:"column" yaml:"column"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	Scheme      string    `json:"scheme" yaml:"scheme"`
	K           int       `json:"k" yaml:"k"`
	KEffective  int       `json:"k_effective" yaml:"k_effective"`
	Edges       []float64 `json:"edges" yaml:"edges"`
	Counts      []int     `json:"counts" yaml:"counts"`
	Dropped     int       `json:"dropped" yaml:"dropped"`
	Min         float64   `json:"min" yaml:"min"`
	Max         float64   `json:"max" yaml:"max"`
	Degenerate  bool      `json:"degenerate" yaml:"degenerate"`
	Approximate bool      `json:"approximate" yaml:"approximate"`
	GVF         float64   `json:"gvf" yaml:"gvf"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Assignment records the class given to one feature of a run.
type Assignment struct {
	FeatureID string `json:"feature_id" yaml:"feature_id"`
	Class     int    `json:"class" yaml:"class"`
}

// NewRun captures the summary of res. ID and CreatedAt are filled in when the run is saved.
func NewRun(column, source string, res *classify.Result) *Run {
	edges := make([]float64, len(res.Edges))
	copy(edges, res.Edges)
	counts := make([]int, len(res.Counts))
	copy(counts, res.Counts)

	return &Run{
		Column:      column,
		Source:      source,
		Scheme:      string(res.Scheme),
		K:           res.K,
		KEffective:  res.KEffective,
		Edges:       edges,
		Counts:      counts,
		Dropped:     res.Dropped,
		Min:         res.Min,
		Max:         res.Max,
		Degenerate:  res.Degenerate,
		Approximate: res.Approximate,
		GVF:         res.GVF(),
	}
}

// Assignments pairs feature ids with res.Classes. Dropped features keep class -1.
func Assignments(ids []string, res *classify.Result) []Assignment {
	n := min(len(ids), len(res.Classes))
	out := make([]Assignment, n)
	for i := 0; i < n; i++ {
		out[i] = Assignment{FeatureID: ids[i], Class: res.Classes[i]}
	}
	return out
}
