package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/storage"
)

// StatsHandler reports provider usage from the generation call log.
type StatsHandler struct {
	calls   storage.GenerationCallRepository
	journal *journal.Journal
	logger  *zap.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(calls storage.GenerationCallRepository, j *journal.Journal, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		calls:   calls,
		journal: j,
		logger:  logger,
	}
}

// Stats returns call totals, a per-provider breakdown and the latest calls.
// Route: GET /api/v1/stats?recent=10
func (h *StatsHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	limit, err := strconv.Atoi(c.DefaultQuery("recent", "10"))
	if err != nil || limit < 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recent must be between 0 and 100"})
		return
	}

	total, err := h.calls.Count(ctx)
	if err != nil {
		h.logger.Error("counting generation calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	byProvider, err := h.calls.StatsByProvider(ctx)
	if err != nil {
		h.logger.Error("aggregating generation calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	recent, err := h.calls.Recent(ctx, limit)
	if err != nil {
		h.logger.Error("listing generation calls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_calls":    total,
		"by_provider":    byProvider,
		"recent":         recent,
		"journal_length": h.journal.Len(),
	})
}
