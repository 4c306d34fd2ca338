package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/gupranay/civitai/internal/domain"
)

// NewStep converts a validated request into the single step of its workflow.
// The payload is serialized as-is, so the seed must already be resolved.
func NewStep(req domain.GenerationRequest) (Step, error) {
	var stepType string
	switch req.Type {
	case domain.MediaTypeVideo:
		stepType = StepTypeVideoGen
	case domain.MediaTypeImage:
		stepType = StepTypeImageGen
	default:
		return Step{}, domain.NewValidationError("type", "unsupported media type %q", req.Type)
	}
	input, err := json.Marshal(req.Payload())
	if err != nil {
		return Step{}, fmt.Errorf("orchestrator: encode step input: %w", err)
	}
	return Step{Type: stepType, Input: input}, nil
}
