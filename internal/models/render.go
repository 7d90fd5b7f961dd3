package models

import "fmt"

// Target selects what the visualization shows: one artifact by index, or
// the original canonical image.
type Target struct {
	index    int
	original bool
}

// OriginalTarget selects the canonical image instead of an artifact.
var OriginalTarget = Target{original: true}

// ArtifactTarget selects the artifact at index i.
func ArtifactTarget(i int) Target {
	return Target{index: i}
}

func (t Target) IsOriginal() bool {
	return t.original
}

// Index is meaningful only when IsOriginal is false.
func (t Target) Index() int {
	return t.index
}

func (t Target) String() string {
	if t.original {
		return "original"
	}
	return fmt.Sprintf("artifact[%d]", t.index)
}

// RenderState is the transition engine's observable state.
type RenderState struct {
	Active      Target
	Previous    *Target
	BlendWeight float64
	Running     bool
}
