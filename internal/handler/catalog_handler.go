package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/wyckoff-journal/internal/catalog"
	"github.com/fleveque/wyckoff-journal/internal/provider"
	"github.com/fleveque/wyckoff-journal/internal/service"
)

// CatalogHandler exposes the provider and strategy choices.
type CatalogHandler struct {
	providers  catalog.ProviderCatalog
	prompts    catalog.PromptCatalog
	loadErrors []string
	dispatcher *service.Dispatcher
}

// NewCatalogHandler creates a CatalogHandler. loadErrors are the
// configuration errors met while loading the catalogs; they are reported on
// every response so a fallback to defaults is never silent.
func NewCatalogHandler(
	providers catalog.ProviderCatalog,
	prompts catalog.PromptCatalog,
	loadErrors []error,
	dispatcher *service.Dispatcher,
) *CatalogHandler {
	msgs := make([]string, 0, len(loadErrors))
	for _, err := range loadErrors {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return &CatalogHandler{
		providers:  providers,
		prompts:    prompts,
		loadErrors: msgs,
		dispatcher: dispatcher,
	}
}

type providerEntry struct {
	Name          string   `json:"name"`
	Models        []string `json:"models"`
	Supported     bool     `json:"supported"`
	HasCredential bool     `json:"has_credential"`
}

// Get lists providers with their models and the strategy names.
// Route: GET /api/v1/catalog
func (h *CatalogHandler) Get(c *gin.Context) {
	providers := make([]providerEntry, 0, len(h.providers))
	for _, name := range h.providers.Names() {
		models, _ := h.providers.Models(name)
		providers = append(providers, providerEntry{
			Name:          name,
			Models:        models,
			Supported:     provider.Known(name),
			HasCredential: h.dispatcher.HasCredential(name),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"providers":  providers,
		"strategies": h.prompts.Names(),
		"errors":     h.loadErrors,
	})
}
