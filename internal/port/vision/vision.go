// Package vision defines the port to the image damage-assessment model.
package vision

import "context"

// Assessment is the analyzer output for one image.
type Assessment struct {
	Assessment string  `json:"assessment"`
	Confidence float64 `json:"confidence"`
}

// Analyzer scores an image for visible damage. Transport failures return
// domain.ErrUnavailable.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (Assessment, error)
}
