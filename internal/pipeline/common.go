package pipeline

import "lympho-lens/internal/models"

// Artifact names in emission order.
const (
	ArtifactGrayscale         = "Grayscale Analysis"
	ArtifactRed               = "Red Channel"
	ArtifactGreen             = "Green Channel"
	ArtifactBlue              = "Blue Channel"
	ArtifactEnhanced          = "Contrast Enhanced"
	ArtifactGrayscaleFallback = "Grayscale Analysis (fallback)"
)

// Percent schedule. Each value is reached by exactly one event.
const (
	percentPreprocessed = 5
	percentGrayscale    = 10
	percentRed          = 30
	percentGreen        = 50
	percentBlue         = 70
	percentPredicted    = 80
	percentEnhanced     = 95
	percentComplete     = 100
)

type channelStep struct {
	channel int
	name    string
	percent int
}

var channelSteps = []channelStep{
	{channel: 0, name: ArtifactRed, percent: percentRed},
	{channel: 1, name: ArtifactGreen, percent: percentGreen},
	{channel: 2, name: ArtifactBlue, percent: percentBlue},
}

func copyArtifacts(artifacts []models.FeatureArtifact) []models.FeatureArtifact {
	return append([]models.FeatureArtifact(nil), artifacts...)
}
