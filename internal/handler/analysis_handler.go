package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/wyckoff-journal/internal/middleware"
	"github.com/fleveque/wyckoff-journal/internal/service"
)

// MaxChartBytes caps an uploaded chart screenshot.
const MaxChartBytes = 20 << 20

// AnalysisHandler runs generations from uploaded charts.
type AnalysisHandler struct {
	dispatcher *service.Dispatcher
	processor  *service.ChartProcessor
	logger     *zap.Logger
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(dispatcher *service.Dispatcher, processor *service.ChartProcessor, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		dispatcher: dispatcher,
		processor:  processor,
		logger:     logger,
	}
}

// Create analyses one chart and appends the result to the journal.
// Route: POST /api/v1/analyses (multipart: chart, provider, model, strategy,
// equity, api_key)
func (h *AnalysisHandler) Create(c *gin.Context) {
	equity, err := parseEquity(c.PostForm("equity"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := service.GenerateInput{
		Provider:   c.PostForm("provider"),
		Model:      c.PostForm("model"),
		Strategy:   c.PostForm("strategy"),
		Equity:     equity,
		Credential: c.PostForm("api_key"),
		RequestID:  middleware.GetRequestID(c),
	}

	data, err := readChart(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if data != nil {
		img, err := h.processor.Normalize(data)
		if err != nil {
			abortWithError(c, err)
			return
		}
		in.Image = img
	}

	rec, err := h.dispatcher.Generate(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// Session reports the dispatcher state and the context the next prompt
// will be built against.
// Route: GET /api/v1/session
func (h *AnalysisHandler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":          h.dispatcher.State().String(),
		"journal_length": h.dispatcher.Journal().Len(),
		"last_context":   h.dispatcher.LastContext(),
	})
}

// readChart returns the uploaded chart bytes, or nil when no file was sent.
func readChart(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("chart")
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chart upload: %w", err)
	}
	if fh.Size > MaxChartBytes {
		return nil, fmt.Errorf("chart is %d bytes, limit is %d", fh.Size, MaxChartBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening chart upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxChartBytes))
	if err != nil {
		return nil, fmt.Errorf("reading chart upload: %w", err)
	}
	return data, nil
}

func parseEquity(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return service.DefaultEquity, nil
	}
	equity, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid equity %q: must be a number", raw)
	}
	return equity, nil
}
