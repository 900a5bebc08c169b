package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Word is one recognized word in raster pixels.
type Word struct {
	Text string
	Box  image.Rectangle
	// Confidence is 0-100.
	Confidence float64
	Block      int
	Paragraph  int
	Line       int
}

// Recognition is the recognizer output for one image.
type Recognition struct {
	Text  string
	Words []Word
}

// RecognizeConfig selects language data for one call.
type RecognizeConfig struct {
	Language string
	// TessdataPrefix overrides the system tessdata directory when set.
	TessdataPrefix string
}

// Recognizer runs OCR over an encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte, cfg RecognizeConfig) (*Recognition, error)
}

// ErrModelLoad marks a recognizer that could not initialize with the
// requested language data.
var ErrModelLoad = errors.New("recognizer could not load language data")

// Tesseract implements Recognizer with gosseract. A fresh client is used per
// call; clients are not safe for concurrent use.
type Tesseract struct {
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a gosseract-backed recognizer.
func NewTesseract() *Tesseract {
	return &Tesseract{clientFactory: gosseract.NewClient}
}

func (t *Tesseract) Recognize(ctx context.Context, img []byte, cfg RecognizeConfig) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := t.clientFactory()
	defer c.Close()

	if cfg.TessdataPrefix != "" {
		if err := c.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if cfg.Language != "" {
		if err := c.SetLanguage(cfg.Language); err != nil {
			return nil, fmt.Errorf("set language: %w", err)
		}
	}
	if err := c.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	// Text triggers engine initialization, which is where missing or
	// incompatible traineddata surfaces.
	text, err := c.Text()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "initialize") {
			return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("word boxes: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		words = append(words, Word{
			Text:       b.Word,
			Box:        b.Box,
			Confidence: b.Confidence,
			Block:      b.BlockNum,
			Paragraph:  b.ParNum,
			Line:       b.LineNum,
		})
	}
	return &Recognition{Text: strings.TrimSpace(text), Words: words}, nil
}
