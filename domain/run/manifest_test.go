package run

import (
	"errors"
	"testing"

	"golopo/domain/core"
	"golopo/domain/evaluation"
)

func testGrid() evaluation.Grid {
	return evaluation.Grid{
		Configurations:   []evaluation.Configuration{{Name: "rf", Family: "random-forest", Estimators: 100, Jobs: 48}},
		Dimensionalities: []int{2, 4, 8},
		Labels:           evaluation.LabelPair{Negative: 0, Positive: 255},
		Kernel:           evaluation.KernelSpec{Name: evaluation.KernelRBF},
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	cohortHash := core.CohortHash("test-cohort")
	gridHash := core.GridHash("test-grid")

	fp1 := NewFingerprint(cohortHash, gridHash, "1.0.0")
	fp2 := NewFingerprint(cohortHash, gridHash, "1.0.0")

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.CohortHash != cohortHash || fp1.GridHash != gridHash || fp1.CodeVersion != "1.0.0" {
		t.Errorf("Fingerprint does not carry its inputs: %+v", fp1)
	}
}

func TestFingerprint_Unique(t *testing.T) {
	base := NewFingerprint("cohort", "grid", "1.0.0")

	testCases := []struct {
		name string
		fp   Fingerprint
	}{
		{"different cohort", NewFingerprint("other-cohort", "grid", "1.0.0")},
		{"different grid", NewFingerprint("cohort", "other-grid", "1.0.0")},
		{"different code", NewFingerprint("cohort", "grid", "1.0.1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should be different for %s", tc.name)
			}
		})
	}
}

func TestManifest_Complete(t *testing.T) {
	patients := []core.PatientID{"p1", "p2", "p3"}
	manifest := NewManifest(core.RunID("run-1"), testGrid(), patients, core.CohortHash("cohort"), "1.0.0")

	if manifest.GridHash != testGrid().Hash() {
		t.Errorf("GridHash not computed from the grid")
	}
	if len(manifest.Patients) != 3 || manifest.Patients[2] != "p3" {
		t.Errorf("Patients not copied in order: %v", manifest.Patients)
	}
	if manifest.StartedAt.IsZero() {
		t.Errorf("StartedAt not stamped")
	}
	if err := manifest.Validate(); err != nil {
		t.Errorf("Manifest validation failed: %v", err)
	}
	if err := manifest.VerifyFingerprint(); err != nil {
		t.Errorf("Fingerprint verification failed: %v", err)
	}

	manifest.Finish()
	if manifest.FinishedAt.IsZero() {
		t.Errorf("FinishedAt not stamped")
	}
}

func TestManifest_ValidateRejects(t *testing.T) {
	m := NewManifest(core.RunID("run-1"), testGrid(), []core.PatientID{"p1"}, core.CohortHash("cohort"), "1.0.0")
	if err := m.Validate(); !errors.Is(err, core.ErrInsufficientPatients) {
		t.Errorf("Expected ErrInsufficientPatients, got %v", err)
	}

	m = NewManifest(core.RunID(""), testGrid(), []core.PatientID{"p1", "p2"}, core.CohortHash("cohort"), "1.0.0")
	if err := m.Validate(); !core.IsValidationError(err) {
		t.Errorf("Expected validation error for empty run id, got %v", err)
	}
}

func TestManifest_TamperedFingerprint(t *testing.T) {
	m := NewManifest(core.RunID("run-1"), testGrid(), []core.PatientID{"p1", "p2"}, core.CohortHash("cohort"), "1.0.0")
	m.CodeVersion = "2.0.0"
	if err := m.VerifyFingerprint(); !errors.Is(err, core.ErrHashMismatch) {
		t.Errorf("Expected ErrHashMismatch, got %v", err)
	}
}
