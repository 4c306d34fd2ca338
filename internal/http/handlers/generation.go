package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gupranay/civitai/internal/domain"
	"github.com/gupranay/civitai/internal/middleware"
)

func (a *App) GenerationCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	req, ok := a.decodeGeneration(w, r)
	if !ok {
		return
	}
	out, err := a.Generation.Generate(r.Context(), req, userID, a.orchestratorToken(r))
	if err != nil {
		a.generationError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) GenerationWhatIf(w http.ResponseWriter, r *http.Request) {
	if a.currentUserID(r) == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	req, ok := a.decodeGeneration(w, r)
	if !ok {
		return
	}
	out, err := a.Generation.WhatIf(r.Context(), req, a.orchestratorToken(r))
	if err != nil {
		a.generationError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) decodeGeneration(w http.ResponseWriter, r *http.Request) (domain.GenerationRequest, bool) {
	var req domain.GenerationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			a.error(w, http.StatusBadRequest, "bad_request", ve.Error())
		} else {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		}
		return req, false
	}
	return req, true
}

func (a *App) generationError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		pv *domain.PolicyViolationError
	)
	switch {
	case errors.As(err, &ve):
		a.error(w, http.StatusBadRequest, "bad_request", ve.Error())
	case errors.As(err, &pv):
		a.error(w, http.StatusBadRequest, "policy_violation", pv.Message)
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing orchestration credentials")
	case errors.Is(err, domain.ErrModerationUnavailable):
		a.error(w, http.StatusServiceUnavailable, "moderation_unavailable", "prompt moderation is temporarily unavailable")
	case errors.Is(err, domain.ErrSubmissionFailure):
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("generation submission failed")
		a.error(w, http.StatusBadGateway, "submission_failed", "failed to submit generation request")
	default:
		a.Logger.Error().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
