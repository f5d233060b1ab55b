package run

import (
	"golopo/domain/core"
	"golopo/domain/evaluation"
)

// Manifest is the complete description of an evaluation run. It travels with
// the aggregate to every sink so a stored result can be replayed.
type Manifest struct {
	RunID       core.RunID      `json:"run_id"`
	Grid        evaluation.Grid `json:"grid"`
	Patients    []string        `json:"patients"`
	CohortHash  core.CohortHash `json:"cohort_hash"`
	GridHash    core.GridHash   `json:"grid_hash"`
	CodeVersion string          `json:"code_version"`
	Fingerprint Fingerprint     `json:"fingerprint"`
	StartedAt   core.Timestamp  `json:"started_at"`
	FinishedAt  core.Timestamp  `json:"finished_at"`
}

// NewManifest creates a run manifest before the grid starts.
func NewManifest(
	runID core.RunID,
	grid evaluation.Grid,
	patients []core.PatientID,
	cohortHash core.CohortHash,
	codeVersion string,
) *Manifest {
	ids := make([]string, len(patients))
	for i, p := range patients {
		ids[i] = p.String()
	}
	gridHash := grid.Hash()

	return &Manifest{
		RunID:       runID,
		Grid:        grid,
		Patients:    ids,
		CohortHash:  cohortHash,
		GridHash:    gridHash,
		CodeVersion: codeVersion,
		Fingerprint: NewFingerprint(cohortHash, gridHash, codeVersion),
		StartedAt:   core.Now(),
	}
}

// Finish stamps the completion time.
func (m *Manifest) Finish() {
	m.FinishedAt = core.Now()
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.CohortHash == "" {
		return core.NewValidationError("run_manifest", "cohort_hash cannot be empty")
	}
	if m.GridHash == "" {
		return core.NewValidationError("run_manifest", "grid_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	if len(m.Patients) < 2 {
		return core.ErrInsufficientPatients
	}
	return nil
}

// VerifyFingerprint recomputes the fingerprint and compares it with the stored one.
func (m *Manifest) VerifyFingerprint() error {
	want := NewFingerprint(m.CohortHash, m.GridHash, m.CodeVersion)
	if want.Fingerprint != m.Fingerprint.Fingerprint {
		return core.ErrHashMismatch
	}
	return nil
}
