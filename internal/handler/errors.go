package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/wyckoff-journal/internal/catalog"
	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/llm"
	"github.com/fleveque/wyckoff-journal/internal/prompt"
	"github.com/fleveque/wyckoff-journal/internal/service"
)

var badRequestErrors = []error{
	service.ErrImageRequired,
	service.ErrUnsupportedImage,
	service.ErrCredentialMissing,
	service.ErrUnknownProvider,
	service.ErrModelRequired,
	service.ErrUnknownStrategy,
	service.ErrInvalidEquity,
	journal.ErrOutOfOrder,
	journal.ErrMalformed,
}

// statusFor maps a workflow error to the HTTP status the client sees.
func statusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	var tmplErr *prompt.TemplateError
	var cfgErr *catalog.ConfigurationError
	switch {
	case errors.As(err, &tmplErr), errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrBusy), errors.Is(err, journal.ErrNotEmpty):
		return http.StatusConflict
	case errors.Is(err, llm.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes {"error": message} with the mapped status and
// attaches err to the context for the request logger.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
