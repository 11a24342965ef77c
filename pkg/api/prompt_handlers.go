package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fgb-andu/reelprompt-api/pkg/repository/promptstore"
	"github.com/fgb-andu/reelprompt-api/pkg/service/auth"
	"github.com/fgb-andu/reelprompt-api/pkg/service/promptgen"
	"github.com/go-chi/chi/v5"
)

type GeneratePromptRequest struct {
	Input string `json:"input"`
}

type GeneratePromptResponse struct {
	OK     bool            `json:"ok"`
	Prompt json.RawMessage `json:"prompt"`
}

type EnhancePromptRequest struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Context string `json:"context"`
}

type EnhancePromptResponse struct {
	OK    bool   `json:"ok"`
	Field string `json:"field"`
	Value string `json:"value"`
}

type SavePromptRequest struct {
	Title string `json:"title"`
	Input string `json:"input"`
	// Output is stored as text. Clients may send either the generated
	// object or a string.
	Output json.RawMessage `json:"output"`
}

type UpdatePromptRequest struct {
	Title      *string `json:"title"`
	IsFavorite *bool   `json:"is_favorite"`
}

// HandleGeneratePrompt answers with the cached bytes on a repeat request, so
// two calls for the same input return identical bodies.
func (h *Handler) HandleGeneratePrompt(w http.ResponseWriter, r *http.Request) {
	var req GeneratePromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.generator.Generate(r.Context(), req.Input)
	switch {
	case errors.Is(err, promptgen.ErrEmptyInput):
		respondWithError(w, http.StatusBadRequest, "Input is required")
		return
	case errors.Is(err, promptgen.ErrInputTooLong):
		respondWithError(w, http.StatusBadRequest, "Input is too long")
		return
	case err != nil:
		h.internalError(w, r, "prompt generation failed", err)
		return
	}

	w.Header().Set("X-Prompt-Source", string(res.Source))
	respondWithJSON(w, http.StatusOK, GeneratePromptResponse{OK: true, Prompt: res.Body})
}

func (h *Handler) HandleEnhancePrompt(w http.ResponseWriter, r *http.Request) {
	var req EnhancePromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.generator.Enhance(r.Context(), req.Field, req.Value, req.Context)
	switch {
	case errors.Is(err, promptgen.ErrUnknownField):
		respondWithError(w, http.StatusBadRequest, "Unknown field")
		return
	case errors.Is(err, promptgen.ErrEmptyInput):
		respondWithError(w, http.StatusBadRequest, "Value is required")
		return
	case errors.Is(err, promptgen.ErrInputTooLong):
		respondWithError(w, http.StatusBadRequest, "Input is too long")
		return
	case err != nil:
		h.internalError(w, r, "prompt enhancement failed", err)
		return
	}

	w.Header().Set("X-Prompt-Source", string(res.Source))
	respondWithJSON(w, http.StatusOK, EnhancePromptResponse{OK: true, Field: res.Field, Value: res.Value})
}

func (h *Handler) HandleListPrompts(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	limit, offset := pagination(r)

	prompts, err := h.prompts.List(r.Context(), id.ID, limit, offset)
	if err != nil {
		h.internalError(w, r, "failed to list prompts", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "prompts": prompts})
}

func (h *Handler) HandleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req SavePromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	output := outputText(req.Output)
	if strings.TrimSpace(req.Input) == "" || output == "" {
		respondWithError(w, http.StatusBadRequest, "Input and output are required")
		return
	}

	prompt, err := h.prompts.Create(r.Context(), id.ID, strings.TrimSpace(req.Title), req.Input, output)
	if err != nil {
		h.internalError(w, r, "failed to save prompt", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "prompt": prompt})
}

func (h *Handler) HandleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	prompt, err := h.prompts.Get(r.Context(), id.ID, chi.URLParam(r, "id"))
	if errors.Is(err, promptstore.ErrPromptNotFound) {
		respondWithError(w, http.StatusNotFound, "Prompt not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to load prompt", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "prompt": prompt})
}

func (h *Handler) HandleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req UpdatePromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == nil && req.IsFavorite == nil {
		respondWithError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	prompt, err := h.prompts.Update(r.Context(), id.ID, chi.URLParam(r, "id"), promptstore.Update{
		Title:      req.Title,
		IsFavorite: req.IsFavorite,
	})
	if errors.Is(err, promptstore.ErrPromptNotFound) {
		respondWithError(w, http.StatusNotFound, "Prompt not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to update prompt", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "prompt": prompt})
}

func (h *Handler) HandleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	err := h.prompts.Delete(r.Context(), id.ID, chi.URLParam(r, "id"))
	if errors.Is(err, promptstore.ErrPromptNotFound) {
		respondWithError(w, http.StatusNotFound, "Prompt not found")
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to delete prompt", err)
		return
	}
	respondWithJSON(w, http.StatusOK, messageResponse{OK: true, Message: "Prompt deleted"})
}

// outputText unwraps a JSON string and keeps any other JSON value verbatim.
func outputText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}
