package models

import "math"

// Stage names one step of the inference protocol.
type Stage string

const (
	StagePreprocessing Stage = "preprocessing"
	StageAnalyzing     Stage = "analyzing"
	StageClassifying   Stage = "classifying"
	StageComplete      Stage = "complete"
)

// Order returns the position of the stage in the protocol, or -1.
func (s Stage) Order() int {
	switch s {
	case StagePreprocessing:
		return 0
	case StageAnalyzing:
		return 1
	case StageClassifying:
		return 2
	case StageComplete:
		return 3
	default:
		return -1
	}
}

// FeatureArtifact is a named square grid of values produced during analysis.
type FeatureArtifact struct {
	Name string
	Data []float32
}

// Side returns the grid side and whether Data is a non-empty perfect square.
func (a FeatureArtifact) Side() (int, bool) {
	n := len(a.Data)
	if n == 0 {
		return 0, false
	}
	side := int(math.Round(math.Sqrt(float64(n))))
	return side, side*side == n
}

// PartialResult is the payload carried by in-flight progress events.
type PartialResult struct {
	Artifacts []FeatureArtifact

	// Set only on classifying events, after the forward pass.
	HasPrediction  bool
	PredictedClass string
	Confidence     float64
}

// ProgressEvent is one unit of the staged pipeline protocol.
type ProgressEvent struct {
	RunID   string
	Stage   Stage
	Percent int
	Label   string
	Partial *PartialResult
}

// PredictionResult is the terminal output of one pipeline run.
type PredictionResult struct {
	RunID          string
	PredictedClass string
	ClassIndex     int
	Confidence     float64
	Scores         []float32
	Artifacts      []FeatureArtifact
}

// Artifact looks up an artifact by name.
func (r *PredictionResult) Artifact(name string) (FeatureArtifact, bool) {
	for _, a := range r.Artifacts {
		if a.Name == name {
			return a, true
		}
	}
	return FeatureArtifact{}, false
}
