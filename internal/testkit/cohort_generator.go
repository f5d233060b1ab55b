package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"golopo/domain/cohort"
	"golopo/domain/core"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CohortGeneratorConfig configures the synthetic enhancement-curve cohort
type CohortGeneratorConfig struct {
	Patients    int     `json:"patients"`
	Voxels      int     `json:"voxels"`
	Timepoints  int     `json:"timepoints"`
	ROIFraction float64 `json:"roi_fraction"`
	Noise       float64 `json:"noise"`
	Background  float64 `json:"background_label"`
	ROI         float64 `json:"roi_label"`
	Seed        uint64  `json:"seed"`
}

// DefaultCohortConfig returns a small cohort that every classifier family
// separates comfortably
func DefaultCohortConfig() CohortGeneratorConfig {
	return CohortGeneratorConfig{
		Patients:    4,
		Voxels:      40,
		Timepoints:  8,
		ROIFraction: 0.3,
		Noise:       0.05,
		Background:  0,
		ROI:         255,
		Seed:        42,
	}
}

// CohortGenerator produces per-patient voxel × timepoint matrices. ROI voxels
// wash in faster and higher than background tissue.
type CohortGenerator struct {
	config CohortGeneratorConfig
}

// NewCohortGenerator validates the configuration
func NewCohortGenerator(config CohortGeneratorConfig) (*CohortGenerator, error) {
	if config.Patients < 1 || config.Voxels < 2 || config.Timepoints < 1 {
		return nil, core.NewValidationError("cohort", fmt.Sprintf("need at least 1 patient, 2 voxels and 1 timepoint, got %d/%d/%d",
			config.Patients, config.Voxels, config.Timepoints))
	}
	if config.ROIFraction <= 0 || config.ROIFraction >= 1 {
		return nil, core.NewValidationError("roi_fraction", "must be in (0, 1)")
	}
	if config.Noise < 0 {
		return nil, core.NewValidationError("noise", "must be non-negative")
	}
	return &CohortGenerator{config: config}, nil
}

// PatientID names patient i the way the generator does
func PatientID(i int) core.PatientID {
	return core.PatientID(fmt.Sprintf("patient-%03d", i+1))
}

// Patients generates every patient record in id order. Patient i draws from
// its own stream, so changing the cohort size never changes earlier patients.
func (g *CohortGenerator) Patients() ([]cohort.Patient, error) {
	out := make([]cohort.Patient, g.config.Patients)
	for i := range out {
		p, err := g.patient(i)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Store generates the cohort as a feature store
func (g *CohortGenerator) Store() (*cohort.Store, error) {
	patients, err := g.Patients()
	if err != nil {
		return nil, err
	}
	return cohort.NewStore(patients...)
}

func (g *CohortGenerator) patient(i int) (cohort.Patient, error) {
	src := rand.NewPCG(g.config.Seed, uint64(i)+1)
	rng := rand.New(src)
	noise := distuv.Normal{Mu: 0, Sigma: g.config.Noise, Src: src}
	// Patient-level gain models scanner and dose differences.
	gain := distuv.Normal{Mu: 1, Sigma: 0.1, Src: src}.Rand()

	voxels, times := g.config.Voxels, g.config.Timepoints
	roi := max(1, min(voxels-1, int(math.Round(float64(voxels)*g.config.ROIFraction))))

	features := mat.NewDense(voxels, times, nil)
	labels := make([]float64, voxels)
	for v, k := range rng.Perm(voxels) {
		inROI := k < roi
		amplitude, rate := 0.4, 0.15
		labels[v] = g.config.Background
		if inROI {
			amplitude, rate = 1.0, 0.6
			labels[v] = g.config.ROI
		}
		for t := 0; t < times; t++ {
			curve := amplitude * (1 - math.Exp(-rate*float64(t+1)))
			features.Set(v, t, gain*curve+noise.Rand())
		}
	}
	return cohort.NewPatient(PatientID(i), features, labels)
}
