package run

import "time"

// Summary is the listing view of a stored run.
type Summary struct {
	RunID            string    `db:"run_id" json:"run_id"`
	Fingerprint      string    `db:"fingerprint" json:"fingerprint"`
	CodeVersion      string    `db:"code_version" json:"code_version"`
	Policy           string    `db:"policy" json:"policy"`
	Configurations   int       `db:"configurations" json:"configurations"`
	Dimensionalities int       `db:"dimensionalities" json:"dimensionalities"`
	Patients         int       `db:"patients" json:"patients"`
	StartedAt        time.Time `db:"started_at" json:"started_at"`
	FinishedAt       time.Time `db:"finished_at" json:"finished_at"`
}

// Summarize builds the listing view of m.
func (m *Manifest) Summarize() Summary {
	return Summary{
		RunID:            m.RunID.String(),
		Fingerprint:      m.Fingerprint.Fingerprint.String(),
		CodeVersion:      m.CodeVersion,
		Policy:           string(m.Grid.Policy()),
		Configurations:   len(m.Grid.Configurations),
		Dimensionalities: len(m.Grid.Dimensionalities),
		Patients:         len(m.Patients),
		StartedAt:        m.StartedAt.Time(),
		FinishedAt:       m.FinishedAt.Time(),
	}
}
