// Package profiling summarizes a cohort before evaluation: class balance per
// patient and the pooled distribution of every feature.
package profiling

import (
	"fmt"

	"golopo/domain/cohort"
	"golopo/domain/evaluation"

	"github.com/montanaflynn/stats"
)

// PatientSummary is the class balance of one patient
type PatientSummary struct {
	Patient   string `json:"patient"`
	Rows      int    `json:"rows"`
	Negatives int    `json:"negatives"`
	Positives int    `json:"positives"`
	// Unknown counts labels outside the pair; any unknown label aborts a run.
	Unknown int `json:"unknown"`
}

// SingleClass reports whether a fold holding out this patient has an undefined AUC.
func (p PatientSummary) SingleClass() bool {
	return p.Negatives == 0 || p.Positives == 0
}

// CohortProfile is the profile of a whole store
type CohortProfile struct {
	Patients  []PatientSummary `json:"patients"`
	Features  []FeatureSummary `json:"features"`
	Rows      int              `json:"rows"`
	Negatives int              `json:"negatives"`
	Positives int              `json:"positives"`
}

// Warnings lists conditions that degrade an evaluation without invalidating it
func (c *CohortProfile) Warnings() []string {
	var out []string
	for _, p := range c.Patients {
		if p.Unknown > 0 {
			out = append(out, fmt.Sprintf("patient %s has %d labels outside the pair", p.Patient, p.Unknown))
		}
		if p.SingleClass() {
			out = append(out, fmt.Sprintf("patient %s has a single class; its folds have no AUC", p.Patient))
		}
	}
	for _, f := range c.Features {
		if f.Constant {
			out = append(out, fmt.Sprintf("feature %d is constant across the cohort", f.Index))
		}
	}
	return out
}

// Profiler profiles stores against a label pair
type Profiler struct {
	pair evaluation.LabelPair
}

// NewProfiler creates a profiler for the given label pair
func NewProfiler(pair evaluation.LabelPair) *Profiler {
	return &Profiler{pair: pair}
}

// Profile walks the store in enumeration order
func (p *Profiler) Profile(store *cohort.Store) (*CohortProfile, error) {
	if store == nil || store.Len() == 0 {
		return nil, fmt.Errorf("cannot profile an empty cohort")
	}

	profile := &CohortProfile{
		Patients: make([]PatientSummary, store.Len()),
		Rows:     store.TotalRows(),
	}
	columns := make([]stats.Float64Data, store.Cols())
	for j := range columns {
		columns[j] = make(stats.Float64Data, 0, profile.Rows)
	}

	for i := 0; i < store.Len(); i++ {
		patient := store.At(i)
		summary := PatientSummary{Patient: patient.ID().String(), Rows: patient.Rows()}
		for r := 0; r < patient.Rows(); r++ {
			switch patient.Label(r) {
			case p.pair.Negative:
				summary.Negatives++
			case p.pair.Positive:
				summary.Positives++
			default:
				summary.Unknown++
			}
			for j, v := range patient.Row(r) {
				columns[j] = append(columns[j], v)
			}
		}
		profile.Negatives += summary.Negatives
		profile.Positives += summary.Positives
		profile.Patients[i] = summary
	}

	profile.Features = make([]FeatureSummary, len(columns))
	for j, col := range columns {
		f, err := summarizeFeature(j, col)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", j, err)
		}
		profile.Features[j] = f
	}
	return profile, nil
}
