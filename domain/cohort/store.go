package cohort

import (
	"fmt"
	"strconv"

	"golopo/domain/core"
)

// Store holds every patient of a run in enumeration order. It is built once
// and never mutated, so concurrent readers need no locking.
type Store struct {
	patients []Patient
	index    map[core.PatientID]int
	cols     int
}

// NewStore validates the records and fixes their enumeration order. Patient
// ids must be unique and every matrix must have the same column count so that
// training pools can be stacked.
func NewStore(patients ...Patient) (*Store, error) {
	s := &Store{
		patients: make([]Patient, 0, len(patients)),
		index:    make(map[core.PatientID]int, len(patients)),
	}
	for i, p := range patients {
		if p.features == nil {
			return nil, core.NewValidationError("patients", fmt.Sprintf("record %d was not built with NewPatient", i))
		}
		if _, dup := s.index[p.id]; dup {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicatePatient, p.id)
		}
		if i == 0 {
			s.cols = p.Cols()
		} else if p.Cols() != s.cols {
			return nil, fmt.Errorf("%w: patient %s has %d columns, expected %d",
				core.ErrShapeMismatch, p.id, p.Cols(), s.cols)
		}
		s.index[p.id] = i
		s.patients = append(s.patients, p)
	}
	return s, nil
}

// Len returns the number of patients.
func (s *Store) Len() int { return len(s.patients) }

// Cols returns the shared feature count.
func (s *Store) Cols() int { return s.cols }

// At returns the patient at enumeration position i.
func (s *Store) At(i int) Patient { return s.patients[i] }

// Lookup finds a patient by id.
func (s *Store) Lookup(id core.PatientID) (Patient, bool) {
	i, ok := s.index[id]
	if !ok {
		return Patient{}, false
	}
	return s.patients[i], true
}

// Position returns the enumeration position of id, or -1.
func (s *Store) Position(id core.PatientID) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// IDs returns patient ids in enumeration order.
func (s *Store) IDs() []core.PatientID {
	ids := make([]core.PatientID, len(s.patients))
	for i, p := range s.patients {
		ids[i] = p.id
	}
	return ids
}

// TotalRows returns the number of voxels across all patients.
func (s *Store) TotalRows() int {
	n := 0
	for _, p := range s.patients {
		n += p.Rows()
	}
	return n
}

// Hash fingerprints ids and shapes in enumeration order.
func (s *Store) Hash() core.CohortHash {
	shapes := make([]core.PatientShape, len(s.patients))
	for i, p := range s.patients {
		shapes[i] = p.Shape()
	}
	return core.ComputeCohortHash(shapes)
}

func itoa(n int) string { return strconv.Itoa(n) }
