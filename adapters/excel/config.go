package excel

// CohortConfig describes a directory with one feature table per patient.
// The file name without extension becomes the patient id; every column other
// than LabelColumn is a feature, in header order.
type CohortConfig struct {
	Dir         string `json:"dir"`
	LabelColumn string `json:"label_column"`
	Sheet       string `json:"sheet"`
}

// DefaultCohortConfig returns sensible defaults for a cohort directory
func DefaultCohortConfig(dir string) CohortConfig {
	return CohortConfig{
		Dir:         dir,
		LabelColumn: "label",
	}
}
