package models

// ClassInfo describes one label the classifier can emit.
type ClassInfo struct {
	Label       string
	Name        string
	Description string
}

// DefaultClasses is the closed label set of the bundled lymphoma model, in
// output-vector order.
var DefaultClasses = []ClassInfo{
	{
		Label:       "CLL",
		Name:        "Chronic Lymphocytic Leukemia",
		Description: "A cancer that starts from lymphocytes in the bone marrow, affecting B cells that normally fight infections.",
	},
	{
		Label:       "FL",
		Name:        "Follicular Lymphoma",
		Description: "A non-Hodgkin lymphoma of germinal center B cells that typically grow in a follicular pattern.",
	},
	{
		Label:       "MCL",
		Name:        "Mantle Cell Lymphoma",
		Description: "A rare B-cell non-Hodgkin lymphoma arising from cells of the mantle zone of the lymph node.",
	},
}

// DefaultClassLabels returns the labels of DefaultClasses.
func DefaultClassLabels() []string {
	labels := make([]string, len(DefaultClasses))
	for i, c := range DefaultClasses {
		labels[i] = c.Label
	}
	return labels
}

// LookupClass returns catalogue info for label. Unknown labels get a
// placeholder description.
func LookupClass(label string) ClassInfo {
	for _, c := range DefaultClasses {
		if c.Label == label {
			return c
		}
	}
	return ClassInfo{Label: label, Name: label, Description: "No additional information available"}
}

// ConfidenceLevel buckets a confidence value for display.
type ConfidenceLevel string

const (
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceModerate ConfidenceLevel = "moderate"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceVeryLow  ConfidenceLevel = "very low"
)

func LevelOf(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= 0.9:
		return ConfidenceHigh
	case confidence >= 0.7:
		return ConfidenceModerate
	case confidence >= 0.5:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}
