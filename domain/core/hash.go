package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Domain-specific hash types
type (
	GridHash   Hash
	CohortHash Hash
)

func (h GridHash) String() string   { return Hash(h).String() }
func (h CohortHash) String() string { return Hash(h).String() }

// PatientShape is the part of a patient record that identifies a cohort
// without hashing the feature values themselves.
type PatientShape struct {
	ID   PatientID
	Rows int
	Cols int
}

// ComputeCohortHash fingerprints the cohort in enumeration order. Order is
// part of the hash because fold indices are positional.
func ComputeCohortHash(patients []PatientShape) CohortHash {
	var data strings.Builder
	for _, p := range patients {
		data.WriteString(fmt.Sprintf("%s:%dx%d;", p.ID, p.Rows, p.Cols))
	}
	return CohortHash(NewHash([]byte(data.String())))
}

// ComputeGridHash fingerprints an ordered list of grid axis descriptions.
func ComputeGridHash(parts []string) GridHash {
	return GridHash(NewHash([]byte(strings.Join(parts, "|"))))
}
