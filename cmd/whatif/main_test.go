package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gupranay/civitai/internal/domain"
)

func TestReadRequestYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "req.yaml")
	jsonPath := filepath.Join(dir, "req.json")
	_ = os.WriteFile(yamlPath, []byte("type: video\ncivitaiTip: 1\ndata:\n  engine: mochi\n  prompt: a calm lake\n  seed: 12\n"), 0o600)
	_ = os.WriteFile(jsonPath, []byte(`{"type":"video","civitaiTip":1,"data":{"engine":"mochi","prompt":"a calm lake","seed":12}}`), 0o600)

	for _, path := range []string{yamlPath, jsonPath} {
		req, err := readRequest(path)
		if err != nil {
			t.Fatalf("readRequest(%s): %v", filepath.Base(path), err)
		}
		if req.Video == nil || req.Video.Engine() != domain.VideoEngineMochi {
			t.Fatalf("%s: engine not decoded: %+v", filepath.Base(path), req)
		}
		if req.Prompt() != "a calm lake" || req.Seed() == nil || *req.Seed() != 12 || req.CivitaiTip != 1 {
			t.Fatalf("%s: request = %+v", filepath.Base(path), req)
		}
		if w := req.Video.Mochi.Width; w == nil || *w != 848 {
			t.Fatalf("%s: mochi default width missing", filepath.Base(path))
		}
	}
}

func TestReadRequestRejectsUnknownEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.yml")
	_ = os.WriteFile(path, []byte("type: video\ndata:\n  engine: sora\n"), 0o600)
	if _, err := readRequest(path); err == nil {
		t.Fatalf("expected error for unknown engine")
	}
}
