package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestGenerationRequestUnmarshalVideoVariants(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		engine VideoEngine
		check  func(t *testing.T, v *VideoInput)
	}{
		{
			name:   "haiper defaults",
			body:   `{"type":"video","data":{"workflow":"txt2vid","engine":"haiper","prompt":"a cat"}}`,
			engine: VideoEngineHaiper,
			check: func(t *testing.T, v *VideoInput) {
				if v.Haiper.Model != "v2" {
					t.Fatalf("model = %q, want v2", v.Haiper.Model)
				}
				if v.Haiper.Resolution != 1080 {
					t.Fatalf("resolution = %d, want 1080", v.Haiper.Resolution)
				}
			},
		},
		{
			name:   "kling base only",
			body:   `{"type":"video","data":{"workflow":"txt2vid","engine":"kling","prompt":"a dog","seed":42}}`,
			engine: VideoEngineKling,
			check: func(t *testing.T, v *VideoInput) {
				if v.Base().Seed == nil || *v.Base().Seed != 42 {
					t.Fatalf("seed = %v, want 42", v.Base().Seed)
				}
			},
		},
		{
			name:   "mochi dimension defaults",
			body:   `{"type":"video","data":{"workflow":"txt2vid","engine":"mochi","prompt":"waves"}}`,
			engine: VideoEngineMochi,
			check: func(t *testing.T, v *VideoInput) {
				if *v.Base().Width != 848 || *v.Base().Height != 480 {
					t.Fatalf("dimensions = %dx%d, want 848x480", *v.Base().Width, *v.Base().Height)
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var req GenerationRequest
			if err := json.Unmarshal([]byte(tc.body), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if req.Type != MediaTypeVideo || req.Video == nil {
				t.Fatalf("expected video payload, got %#v", req)
			}
			if got := req.Video.Engine(); got != tc.engine {
				t.Fatalf("engine = %q, want %q", got, tc.engine)
			}
			if req.CivitaiTip != 0 || req.CreatorTip != 0 {
				t.Fatalf("tips should default to 0, got %v/%v", req.CivitaiTip, req.CreatorTip)
			}
			tc.check(t, req.Video)
		})
	}
}

func TestGenerationRequestUnmarshalRejectsUnknownDiscriminants(t *testing.T) {
	bodies := map[string]string{
		"unknown type":   `{"type":"audio","data":{}}`,
		"unknown engine": `{"type":"video","data":{"engine":"sora","prompt":"x"}}`,
		"missing video":  `{"type":"video"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			var req GenerationRequest
			err := json.Unmarshal([]byte(body), &req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestGenerationRequestValidate(t *testing.T) {
	seed := func(v int64) *int64 { return &v }
	longPrompt := strings.Repeat("a", DefaultMaxPromptLength+1)
	tests := []struct {
		name  string
		req   GenerationRequest
		field string
	}{
		{
			name:  "negative tip",
			req:   GenerationRequest{Type: MediaTypeImage, Image: &ImageInput{}, CivitaiTip: -1},
			field: "civitaiTip",
		},
		{
			name: "prompt too long",
			req: GenerationRequest{Type: MediaTypeVideo, Video: &VideoInput{Kling: &KlingInput{
				VideoBase: VideoBase{Engine: VideoEngineKling, Prompt: longPrompt},
			}}},
			field: "data.prompt",
		},
		{
			name: "seed out of range",
			req: GenerationRequest{Type: MediaTypeVideo, Video: &VideoInput{Kling: &KlingInput{
				VideoBase: VideoBase{Engine: VideoEngineKling, Seed: seed(MaxSeedValue + 1)},
			}}},
			field: "seed",
		},
		{
			name: "negative prompt too long",
			req: GenerationRequest{Type: MediaTypeVideo, Video: &VideoInput{Haiper: &HaiperInput{
				VideoBase:      VideoBase{Engine: VideoEngineHaiper},
				NegativePrompt: strings.Repeat("b", DefaultMaxNegativePromptLength+1),
			}}},
			field: "data.negativePrompt",
		},
		{
			name: "two engines",
			req: GenerationRequest{Type: MediaTypeVideo, Video: &VideoInput{
				Kling: &KlingInput{VideoBase: VideoBase{Engine: VideoEngineKling}},
				Mochi: &MochiInput{VideoBase: VideoBase{Engine: VideoEngineMochi}},
			}},
			field: "data",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate(DefaultLimits())
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	ok := GenerationRequest{Type: MediaTypeVideo, Video: &VideoInput{Mochi: &MochiInput{
		VideoBase: VideoBase{Engine: VideoEngineMochi, Prompt: "sunset", Seed: seed(MaxSeedValue)},
	}}}
	if err := ok.Validate(DefaultLimits()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestGenerationRequestWithSeedLeavesReceiver(t *testing.T) {
	req := GenerationRequest{Type: MediaTypeVideo, Tags: []string{"a"}, Video: &VideoInput{Kling: &KlingInput{
		VideoBase: VideoBase{Engine: VideoEngineKling, Prompt: "x"},
	}}}
	seeded := req.WithSeed(7)
	if req.Seed() != nil {
		t.Fatalf("receiver mutated: seed=%d", *req.Seed())
	}
	if seeded.Seed() == nil || *seeded.Seed() != 7 {
		t.Fatalf("seeded request seed = %v, want 7", seeded.Seed())
	}

	img := GenerationRequest{Type: MediaTypeImage}.WithSeed(9)
	if img.Image == nil || *img.Image.Seed != 9 {
		t.Fatalf("image seed not applied: %#v", img.Image)
	}
}

func TestGenerationRequestMarshalRoundTrip(t *testing.T) {
	body := `{"type":"video","civitaiTip":1.5,"tags":["x"],"data":{"workflow":"txt2vid","engine":"mochi","prompt":"sea"}}`
	var req GenerationRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again GenerationRequest
	if err := json.Unmarshal(raw, &again); err != nil {
		t.Fatalf("unmarshal marshalled: %v", err)
	}
	if again.Video.Engine() != VideoEngineMochi || again.CivitaiTip != 1.5 || again.Prompt() != "sea" {
		t.Fatalf("round trip mismatch: %s", raw)
	}
}
