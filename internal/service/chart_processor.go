// Package service holds the chart-analysis workflow: chart normalisation and
// the dispatcher that turns one chart into one journal entry.
package service

import (
	"errors"
	"fmt"

	"github.com/h2non/bimg"

	"github.com/fleveque/wyckoff-journal/internal/llm"
)

// DefaultEquity is the account size used when the caller gives none.
const DefaultEquity = 9500000

// DefaultMaxDimension bounds the longest edge of a chart sent to a provider.
const DefaultMaxDimension = 2048

// ErrUnsupportedImage is returned for bytes that are not a PNG, JPEG or WebP.
var ErrUnsupportedImage = errors.New("unsupported image format")

var supportedTypes = map[bimg.ImageType]bool{
	bimg.PNG:  true,
	bimg.JPEG: true,
	bimg.WEBP: true,
}

// ChartProcessor turns an uploaded screenshot into the PNG payload every
// adapter receives. It uses bimg (libvips bindings).
type ChartProcessor struct {
	maxDimension int
}

// NewChartProcessor creates a processor; maxDimension <= 0 uses the default.
func NewChartProcessor(maxDimension int) *ChartProcessor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &ChartProcessor{maxDimension: maxDimension}
}

// Normalize converts data to PNG and shrinks it so neither edge exceeds the
// maximum. Small PNGs pass through byte-for-byte; images are never enlarged.
func (p *ChartProcessor) Normalize(data []byte) (*llm.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrUnsupportedImage)
	}

	kind := bimg.DetermineImageType(data)
	if !supportedTypes[kind] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, bimg.ImageTypeName(kind))
	}

	img := bimg.NewImage(data)
	size, err := img.Size()
	if err != nil {
		return nil, fmt.Errorf("%w: reading dimensions: %v", ErrUnsupportedImage, err)
	}

	opts := bimg.Options{
		Type:           bimg.PNG,
		Interpretation: bimg.InterpretationSRGB,
	}
	// Setting one edge lets libvips keep the aspect ratio.
	switch {
	case size.Width >= size.Height && size.Width > p.maxDimension:
		opts.Width = p.maxDimension
	case size.Height > size.Width && size.Height > p.maxDimension:
		opts.Height = p.maxDimension
	case kind == bimg.PNG:
		return &llm.Image{Data: data, MIMEType: "image/png"}, nil
	}

	out, err := img.Process(opts)
	if err != nil {
		return nil, fmt.Errorf("converting chart to png: %w", err)
	}
	return &llm.Image{Data: out, MIMEType: "image/png"}, nil
}
