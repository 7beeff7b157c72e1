// Package tesseract registers the in-process Tesseract engine under the
// "tesseract" selector. It links against libtesseract, so stage binaries
// opt in with a blank import.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/pagemill/pagemill/internal/ocr"
)

func init() {
	ocr.Register("tesseract", func(ocr.Config) (ocr.Engine, error) {
		return engine{}, nil
	})
}

type engine struct{}

func (engine) Name() string { return "tesseract" }

func (engine) Recognize(_ context.Context, image []byte) (ocr.Result, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(image); err != nil {
		return ocr.Result{}, fmt.Errorf("load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize: %w", err)
	}
	return ocr.Result{Text: text, Confidence: meanConfidence(client)}, nil
}

// meanConfidence averages per-word confidences, scaled to 0..1.
func meanConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range boxes {
		total += b.Confidence
	}
	return total / float64(len(boxes)) / 100
}
