// Package classifier defines the port to the intent classification model.
package classifier

import (
	"context"

	"github.com/careflow-io/careflow/internal/domain/intent"
)

// Classifier maps free text to an intent with a confidence in [0,1].
// Transport failures return domain.ErrUnavailable.
type Classifier interface {
	Classify(ctx context.Context, text string) (intent.Prediction, error)
}
