package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gupranay/civitai/internal/domain"
	"github.com/gupranay/civitai/internal/infra"
	"github.com/gupranay/civitai/internal/middleware"
	"github.com/gupranay/civitai/internal/orchestrator"
)

// OrchestratorTokenHeader lets callers submit with their own orchestration token.
const OrchestratorTokenHeader = "X-Orchestrator-Token"

const maxRequestBody = 1 << 20

// Generator is the pipeline the generation endpoints drive.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest, userID, token string) (orchestrator.FormattedWorkflow, error)
	WhatIf(ctx context.Context, req domain.GenerationRequest, token string) (orchestrator.QueueEstimate, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type App struct {
	Generation        Generator
	OrchestratorToken string
	Checks            map[string]HealthCheck
	Logger            *infra.Logger
}

func NewApp(gen Generator, orchestratorToken string, logger *infra.Logger) *App {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &App{Generation: gen, OrchestratorToken: orchestratorToken, Logger: logger, Checks: map[string]HealthCheck{}}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) orchestratorToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(OrchestratorTokenHeader)); token != "" {
		return token
	}
	return a.OrchestratorToken
}
