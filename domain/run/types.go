package run

import (
	"crypto/sha256"
	"fmt"

	"golopo/domain/core"
)

// Fingerprint ensures deterministic replay: two runs with the same
// fingerprint must produce the same aggregate.
type Fingerprint struct {
	CohortHash  core.CohortHash `json:"cohort_hash"`
	GridHash    core.GridHash   `json:"grid_hash"`
	CodeVersion string          `json:"code_version"`
	Fingerprint core.Hash       `json:"fingerprint"` // Hash of all above
}

// NewFingerprint creates a fingerprint from determinism parameters
func NewFingerprint(cohortHash core.CohortHash, gridHash core.GridHash, codeVersion string) Fingerprint {
	return Fingerprint{
		CohortHash:  cohortHash,
		GridHash:    gridHash,
		CodeVersion: codeVersion,
		Fingerprint: computeFingerprint(cohortHash, gridHash, codeVersion),
	}
}

func computeFingerprint(cohortHash core.CohortHash, gridHash core.GridHash, codeVersion string) core.Hash {
	data := fmt.Sprintf("cohort:%s|grid:%s|code:%s", cohortHash, gridHash, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
