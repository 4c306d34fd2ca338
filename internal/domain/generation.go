package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// MediaType discriminates the generation payload.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// VideoEngine discriminates the video payload variants.
type VideoEngine string

const (
	VideoEngineHaiper VideoEngine = "haiper"
	VideoEngineKling  VideoEngine = "kling"
	VideoEngineMochi  VideoEngine = "mochi"
)

const (
	// MaxSeedValue is the largest seed the generation engines accept.
	MaxSeedValue int64 = 4294967295

	DefaultMaxPromptLength         = 1500
	DefaultMaxNegativePromptLength = 1000

	defaultHaiperModel      = "v2"
	defaultHaiperResolution = 1080
	defaultMochiWidth       = 848
	defaultMochiHeight      = 480
)

// Limits holds the configurable length bounds checked by Validate.
type Limits struct {
	MaxPromptLength         int
	MaxNegativePromptLength int
}

// DefaultLimits mirrors the engines' documented prompt limits.
func DefaultLimits() Limits {
	return Limits{
		MaxPromptLength:         DefaultMaxPromptLength,
		MaxNegativePromptLength: DefaultMaxNegativePromptLength,
	}
}

// GenerationRequest is a user's request to produce media. Exactly one of Image
// or Video is set, matching Type.
type GenerationRequest struct {
	Type       MediaType
	Image      *ImageInput
	Video      *VideoInput
	CivitaiTip float64
	CreatorTip float64
	Tags       []string
}

type generationEnvelope struct {
	Type       MediaType       `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	CivitaiTip float64         `json:"civitaiTip"`
	CreatorTip float64         `json:"creatorTip"`
	Tags       []string        `json:"tags,omitempty"`
}

// UnmarshalJSON decodes the {type, data} union and rejects unknown discriminants.
func (r *GenerationRequest) UnmarshalJSON(data []byte) error {
	var env generationEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("invalid payload: %v", err)}
	}
	out := GenerationRequest{
		Type:       env.Type,
		CivitaiTip: env.CivitaiTip,
		CreatorTip: env.CreatorTip,
		Tags:       env.Tags,
	}
	switch env.Type {
	case MediaTypeImage:
		img := &ImageInput{}
		if len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
			if err := json.Unmarshal(env.Data, img); err != nil {
				return NewValidationError("data", "invalid image payload: %v", err)
			}
		}
		out.Image = img
	case MediaTypeVideo:
		if len(env.Data) == 0 {
			return NewValidationError("data", "video payload is required")
		}
		video := &VideoInput{}
		if err := json.Unmarshal(env.Data, video); err != nil {
			return err
		}
		out.Video = video
	default:
		return NewValidationError("type", "must be one of image, video (got %q)", env.Type)
	}
	*r = out
	return nil
}

// MarshalJSON writes the request back in its {type, data} wire form.
func (r GenerationRequest) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(r.Payload())
	if err != nil {
		return nil, err
	}
	return json.Marshal(generationEnvelope{
		Type:       r.Type,
		Data:       payload,
		CivitaiTip: r.CivitaiTip,
		CreatorTip: r.CreatorTip,
		Tags:       r.Tags,
	})
}

// Payload returns the active variant for use as a workflow step input.
func (r GenerationRequest) Payload() any {
	switch r.Type {
	case MediaTypeVideo:
		if r.Video != nil {
			return r.Video
		}
	case MediaTypeImage:
		if r.Image != nil {
			return r.Image
		}
	}
	return struct{}{}
}

// HasPrompt reports whether the payload carries free text that must be screened.
func (r GenerationRequest) HasPrompt() bool {
	return r.Type == MediaTypeVideo && r.Video != nil && r.Video.Base() != nil
}

// Prompt returns the text to screen, or "" when the payload has none.
func (r GenerationRequest) Prompt() string {
	if !r.HasPrompt() {
		return ""
	}
	return r.Video.Base().Prompt
}

// Seed returns the payload seed, nil when absent.
func (r GenerationRequest) Seed() *int64 {
	switch {
	case r.Type == MediaTypeVideo && r.Video != nil && r.Video.Base() != nil:
		return r.Video.Base().Seed
	case r.Type == MediaTypeImage && r.Image != nil:
		return r.Image.Seed
	}
	return nil
}

// WithSeed returns a copy of the request whose payload carries seed. The
// receiver is left untouched.
func (r GenerationRequest) WithSeed(seed int64) GenerationRequest {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	switch r.Type {
	case MediaTypeVideo:
		if r.Video != nil {
			v := r.Video.clone()
			if base := v.Base(); base != nil {
				base.Seed = &seed
			}
			out.Video = v
		}
	case MediaTypeImage:
		img := ImageInput{}
		if r.Image != nil {
			img = *r.Image
		}
		img.Seed = &seed
		out.Image = &img
	}
	return out
}

// Validate checks the request against limits. It runs before any screening.
func (r GenerationRequest) Validate(limits Limits) error {
	if r.CivitaiTip < 0 {
		return NewValidationError("civitaiTip", "must be greater than or equal to 0")
	}
	if r.CreatorTip < 0 {
		return NewValidationError("creatorTip", "must be greater than or equal to 0")
	}
	switch r.Type {
	case MediaTypeImage:
		if r.Image == nil {
			return NewValidationError("data", "image payload is required")
		}
		if r.Video != nil {
			return NewValidationError("data", "image request cannot carry a video payload")
		}
		return validateSeed(r.Image.Seed)
	case MediaTypeVideo:
		if r.Video == nil {
			return NewValidationError("data", "video payload is required")
		}
		if r.Image != nil {
			return NewValidationError("data", "video request cannot carry an image payload")
		}
		return r.Video.validate(limits)
	default:
		return NewValidationError("type", "must be one of image, video (got %q)", r.Type)
	}
}

func validateSeed(seed *int64) error {
	if seed == nil {
		return nil
	}
	if *seed < 0 || *seed > MaxSeedValue {
		return NewValidationError("seed", "must be between 0 and %d", MaxSeedValue)
	}
	return nil
}

// ImageInput is the image payload. It carries no prompt of its own.
type ImageInput struct {
	Seed *int64 `json:"seed,omitempty"`
}

// VideoBase holds the fields shared by every video engine.
type VideoBase struct {
	Workflow string      `json:"workflow"`
	Engine   VideoEngine `json:"engine"`
	Prompt   string      `json:"prompt"`
	Seed     *int64      `json:"seed,omitempty"`
	Width    *int        `json:"width,omitempty"`
	Height   *int        `json:"height,omitempty"`
}

type HaiperInput struct {
	VideoBase
	Model                string `json:"model"`
	NegativePrompt       string `json:"negativePrompt,omitempty"`
	Image                string `json:"image,omitempty"`
	Duration             *int   `json:"duration,omitempty"`
	AspectRatio          string `json:"aspectRatio,omitempty"`
	SourceImageURL       string `json:"sourceImageUrl,omitempty"`
	Resolution           int    `json:"resolution"`
	EnablePromptEnhancer *bool  `json:"enablePromptEnhancer,omitempty"`
}

type KlingInput struct {
	VideoBase
}

type MochiInput struct {
	VideoBase
	EnablePromptEnhancer *bool `json:"enablePromptEnhancer,omitempty"`
}

// VideoInput is the engine-keyed video union. Exactly one variant is non-nil.
type VideoInput struct {
	Haiper *HaiperInput
	Kling  *KlingInput
	Mochi  *MochiInput
}

// Engine reports the active variant's discriminant.
func (v *VideoInput) Engine() VideoEngine {
	if base := v.Base(); base != nil {
		return base.Engine
	}
	return ""
}

// Base returns the shared fields of the active variant.
func (v *VideoInput) Base() *VideoBase {
	switch {
	case v == nil:
		return nil
	case v.Haiper != nil:
		return &v.Haiper.VideoBase
	case v.Kling != nil:
		return &v.Kling.VideoBase
	case v.Mochi != nil:
		return &v.Mochi.VideoBase
	}
	return nil
}

func (v *VideoInput) UnmarshalJSON(data []byte) error {
	var head struct {
		Engine VideoEngine `json:"engine"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return NewValidationError("data", "invalid video payload: %v", err)
	}
	out := VideoInput{}
	switch head.Engine {
	case VideoEngineHaiper:
		in := &HaiperInput{}
		if err := json.Unmarshal(data, in); err != nil {
			return NewValidationError("data", "invalid haiper payload: %v", err)
		}
		if in.Model == "" {
			in.Model = defaultHaiperModel
		}
		if in.Resolution == 0 {
			in.Resolution = defaultHaiperResolution
		}
		out.Haiper = in
	case VideoEngineKling:
		in := &KlingInput{}
		if err := json.Unmarshal(data, in); err != nil {
			return NewValidationError("data", "invalid kling payload: %v", err)
		}
		out.Kling = in
	case VideoEngineMochi:
		in := &MochiInput{}
		if err := json.Unmarshal(data, in); err != nil {
			return NewValidationError("data", "invalid mochi payload: %v", err)
		}
		if in.Width == nil {
			w := defaultMochiWidth
			in.Width = &w
		}
		if in.Height == nil {
			h := defaultMochiHeight
			in.Height = &h
		}
		out.Mochi = in
	default:
		return NewValidationError("data.engine", "must be one of haiper, kling, mochi (got %q)", head.Engine)
	}
	*v = out
	return nil
}

func (v VideoInput) MarshalJSON() ([]byte, error) {
	switch {
	case v.Haiper != nil:
		return json.Marshal(v.Haiper)
	case v.Kling != nil:
		return json.Marshal(v.Kling)
	case v.Mochi != nil:
		return json.Marshal(v.Mochi)
	}
	return nil, fmt.Errorf("video payload has no active engine")
}

func (v *VideoInput) clone() *VideoInput {
	out := &VideoInput{}
	switch {
	case v.Haiper != nil:
		c := *v.Haiper
		out.Haiper = &c
	case v.Kling != nil:
		c := *v.Kling
		out.Kling = &c
	case v.Mochi != nil:
		c := *v.Mochi
		out.Mochi = &c
	}
	return out
}

func (v *VideoInput) validate(limits Limits) error {
	active := 0
	for _, set := range []bool{v.Haiper != nil, v.Kling != nil, v.Mochi != nil} {
		if set {
			active++
		}
	}
	if active != 1 {
		return NewValidationError("data", "exactly one video engine payload must be set")
	}
	base := v.Base()
	if limits.MaxPromptLength > 0 && utf8.RuneCountInString(base.Prompt) > limits.MaxPromptLength {
		return NewValidationError("data.prompt", "cannot be longer than %d characters", limits.MaxPromptLength)
	}
	if err := validateSeed(base.Seed); err != nil {
		return err
	}
	if base.Width != nil && *base.Width <= 0 {
		return NewValidationError("data.width", "must be positive")
	}
	if base.Height != nil && *base.Height <= 0 {
		return NewValidationError("data.height", "must be positive")
	}
	if h := v.Haiper; h != nil {
		if limits.MaxNegativePromptLength > 0 && utf8.RuneCountInString(h.NegativePrompt) > limits.MaxNegativePromptLength {
			return NewValidationError("data.negativePrompt", "cannot be longer than %d characters", limits.MaxNegativePromptLength)
		}
		if h.Duration != nil && *h.Duration <= 0 {
			return NewValidationError("data.duration", "must be positive")
		}
	}
	return nil
}
