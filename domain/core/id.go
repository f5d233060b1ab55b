package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID     ID
	PatientID ID
)

// String conversions for domain IDs
func (id RunID) String() string     { return ID(id).String() }
func (id PatientID) String() string { return ID(id).String() }

// NewRunID issues a fresh time-ordered run identifier.
func NewRunID() RunID { return RunID(NewID()) }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParsePatientID parses a string into PatientID. Surrounding whitespace is
// trimmed since ids usually come from file names or spreadsheet cells.
func ParsePatientID(s string) (PatientID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", NewValidationError("patient_id", "cannot be empty")
	}
	return PatientID(trimmed), nil
}
