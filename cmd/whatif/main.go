package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/gupranay/civitai/internal/domain"
	"github.com/gupranay/civitai/internal/generation"
	"github.com/gupranay/civitai/internal/infra"
	"github.com/gupranay/civitai/internal/moderation"
	"github.com/gupranay/civitai/internal/orchestrator"
)

func main() {
	_ = godotenv.Load()

	file := pflag.StringP("file", "f", "", "generation request file (.json, .yaml or .yml)")
	token := pflag.StringP("token", "t", os.Getenv("ORCHESTRATOR_TOKEN"), "orchestration API token")
	baseURL := pflag.String("base-url", envOr("ORCHESTRATOR_BASE_URL", "https://orchestration.civitai.com"), "orchestration API base URL")
	timeout := pflag.Duration("timeout", 30*time.Second, "request timeout")
	horizon := pflag.Duration("eta-horizon", orchestrator.DefaultETAHorizon, "ETA assumed when no job reports a start time")
	debug := pflag.Bool("debug", false, "log requests to stderr")
	pflag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "whatif: --file is required")
		pflag.Usage()
		os.Exit(2)
	}

	appEnv := "production"
	if *debug {
		appEnv = "development"
	}
	logger := infra.NewLogger(appEnv).Output(os.Stderr)

	req, err := readRequest(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "whatif: %v\n", err)
		os.Exit(1)
	}

	svc, err := generation.NewService(generation.Options{
		Auditor:    moderation.MustNewAuditor(moderation.DefaultPolicy()),
		Counter:    moderation.NewMemoryCounter(0),
		Submitter:  orchestrator.NewClient(orchestrator.Options{BaseURL: *baseURL, Timeout: *timeout, Logger: &logger}),
		ETAHorizon: *horizon,
		Logger:     &logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "whatif: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	estimate, err := svc.WhatIf(ctx, req, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "whatif: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(estimate)
}

// readRequest decodes a request file. YAML is converted to JSON first so both
// formats go through the same discriminated-union decoding.
func readRequest(path string) (domain.GenerationRequest, error) {
	var req domain.GenerationRequest
	raw, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return req, fmt.Errorf("parse %s: %w", path, err)
		}
		if raw, err = json.Marshal(doc); err != nil {
			return req, fmt.Errorf("convert %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode %s: %w", path, err)
	}
	return req, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
