package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/wyckoff-journal/internal/journal"
	"github.com/fleveque/wyckoff-journal/internal/model"
	"github.com/fleveque/wyckoff-journal/internal/render"
	"github.com/fleveque/wyckoff-journal/internal/storage"
)

// MaxImportBytes caps an uploaded journal document.
const MaxImportBytes = 32 << 20

// errNoSink is returned by Archive when no export sink is configured.
var errNoSink = errors.New("no export sink configured")

// JournalHandler serves the session journal: listing, export, import and
// archiving.
type JournalHandler struct {
	journal  *journal.Journal
	renderer *render.Renderer
	sink     storage.ExportSink
	now      func() time.Time
	logger   *zap.Logger
}

// NewJournalHandler creates a JournalHandler. sink may be nil, which
// disables archiving.
func NewJournalHandler(j *journal.Journal, renderer *render.Renderer, sink storage.ExportSink, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{
		journal:  j,
		renderer: renderer,
		sink:     sink,
		now:      time.Now,
		logger:   logger,
	}
}

type journalEntry struct {
	model.AnalysisRecord
	HTML string `json:"html,omitempty"`
}

// List returns the records newest first. With ?format=html each entry also
// carries the analysis rendered from Markdown.
// Route: GET /api/v1/journal
func (h *JournalHandler) List(c *gin.Context) {
	records := h.journal.Newest()
	withHTML := c.Query("format") == "html"

	entries := make([]journalEntry, 0, len(records))
	for _, rec := range records {
		entry := journalEntry{AnalysisRecord: rec}
		if withHTML {
			html, err := h.renderer.HTML(rec.Analysis)
			if err != nil {
				abortWithError(c, err)
				return
			}
			entry.HTML = html
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"records": entries,
	})
}

// Export downloads the whole journal, oldest first.
// Route: GET /api/v1/journal/export
func (h *JournalHandler) Export(c *gin.Context) {
	data, err := h.journal.Marshal()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, journal.ExportFileName(h.now())))
	c.Data(http.StatusOK, journal.ContentType, data)
}

// Import restores a previously exported journal into the empty session
// journal. The document is either the request body or a multipart "file".
// Route: POST /api/v1/journal/import
func (h *JournalHandler) Import(c *gin.Context) {
	var body io.Reader = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImportBytes)
	// FormFile parses the body as a form, so only multipart requests may
	// reach it; any other content type is read as the raw document.
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		fh, err := c.FormFile("file")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("reading upload: %v", err)})
			return
		}
		f, err := fh.Open()
		if err != nil {
			abortWithError(c, fmt.Errorf("opening upload: %w", err))
			return
		}
		defer f.Close()
		body = io.LimitReader(f, MaxImportBytes)
	}

	if err := h.journal.Import(body); err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("journal restored", zap.Int("records", h.journal.Len()))
	c.JSON(http.StatusOK, gin.H{"count": h.journal.Len()})
}

// Archive writes the current export to the configured sink.
// Route: POST /api/v1/journal/archive
func (h *JournalHandler) Archive(c *gin.Context) {
	if h.sink == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": errNoSink.Error()})
		return
	}

	data, err := h.journal.Marshal()
	if err != nil {
		abortWithError(c, err)
		return
	}

	name := journal.ExportFileName(h.now())
	location, err := h.sink.Put(c.Request.Context(), name, data)
	if err != nil {
		h.logger.Error("archiving journal", zap.String("sink", h.sink.Name()), zap.Error(err))
		abortWithError(c, err)
		return
	}

	h.logger.Info("journal archived",
		zap.String("sink", h.sink.Name()),
		zap.String("location", location),
		zap.Int("records", h.journal.Len()),
	)
	c.JSON(http.StatusCreated, gin.H{
		"sink":     h.sink.Name(),
		"name":     name,
		"location": location,
		"count":    h.journal.Len(),
	})
}
