package evaluation

// Confusion holds the confusion counts of one fold at the 0.5 threshold.
type Confusion struct {
	TruePositive  int `json:"tp"`
	FalsePositive int `json:"fp"`
	TrueNegative  int `json:"tn"`
	FalseNegative int `json:"fn"`
}

// FoldResult summarizes a classifier on one held-out patient.
type FoldResult struct {
	Confusion   Confusion `json:"confusion"`
	Accuracy    float64   `json:"accuracy"`
	Sensitivity float64   `json:"sensitivity"`
	Specificity float64   `json:"specificity"`
	Precision   float64   `json:"precision"`
	F1          float64   `json:"f1"`
	// AUC is only meaningful when AUCDefined is set; a held-out patient with a
	// single class has no ROC curve.
	AUC        float64   `json:"auc"`
	AUCDefined bool      `json:"auc_defined"`
	Scores     []float64 `json:"scores,omitempty"`
	TrainRows  int       `json:"train_rows"`
	TestRows   int       `json:"test_rows"`
}

// EntryStatus tells whether an aggregate slot carries a result.
type EntryStatus string

const (
	StatusCompleted EntryStatus = "completed"
	StatusSkipped   EntryStatus = "skipped"
)

// Entry is one (configuration, dimensionality, fold) slot of the aggregate.
// Skipped entries are explicit sentinels: Result is nil and Reason explains why.
type Entry struct {
	Configuration           string      `json:"configuration"`
	ConfigurationIndex      int         `json:"configuration_index"`
	Dimensionality          int         `json:"dimensionality"`
	DimensionalityIndex     int         `json:"dimensionality_index"`
	EffectiveDimensionality int         `json:"effective_dimensionality"`
	Fold                    int         `json:"fold"`
	Patient                 string      `json:"patient"`
	Status                  EntryStatus `json:"status"`
	Reason                  string      `json:"reason,omitempty"`
	DurationMs              int64       `json:"duration_ms"`
	Result                  *FoldResult `json:"result,omitempty"`
}

// Completed reports whether the entry holds a result.
func (e Entry) Completed() bool {
	return e.Status == StatusCompleted && e.Result != nil
}
