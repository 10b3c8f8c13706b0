package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/runbox/internal/language"
)

// LanguageInfo is the client-facing description of a supported language.
type LanguageInfo struct {
	ID        string   `json:"id"`
	Aliases   []string `json:"aliases,omitempty"`
	Extension string   `json:"extension"`
	Compiled  bool     `json:"compiled"`
}

// LanguageHandler serves the contents of the language registry.
type LanguageHandler struct {
	languages *language.Registry
	logger    *slog.Logger
}

// NewLanguageHandler creates a new LanguageHandler.
func NewLanguageHandler(languages *language.Registry, logger *slog.Logger) *LanguageHandler {
	return &LanguageHandler{languages: languages, logger: logger}
}

// HandleList returns all supported languages.
//
// HTTP: GET /api/languages
func (h *LanguageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	profiles := h.languages.List()
	infos := make([]LanguageInfo, 0, len(profiles))
	for _, p := range profiles {
		infos = append(infos, LanguageInfo{
			ID:        p.ID,
			Aliases:   p.Aliases,
			Extension: p.Extension,
			Compiled:  p.HasCompile,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}
