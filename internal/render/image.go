package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"

	apperrors "github.com/adaoss/Mail2printer/pkg/errors"
)

// A4 portrait in PDF points, with a 10mm margin on every side. Margins are
// dropped entirely if the image is so large that fitting inside them would
// scale it below minFitScale.
const (
	pageWidthPt  = 595.0
	pageHeightPt = 842.0
	fitMarginPt  = 28.35
	minFitScale  = 0.1
)

// pageFit is the placement of an image on the fixed A4 portrait canvas.
type pageFit struct {
	Scale  float64
	Width  float64
	Height float64
	X      float64
	Y      float64
}

// fitToPage computes the uniform scale that fits an image inside the
// margin-reduced page, centered on both axes. The page is always portrait;
// landscape sources simply scale smaller.
func fitToPage(width, height float64) pageFit {
	fit := fitWithMargin(width, height, fitMarginPt)
	if fit.Scale < minFitScale {
		fit = fitWithMargin(width, height, 0)
	}
	return fit
}

func fitWithMargin(width, height, margin float64) pageFit {
	availWidth := pageWidthPt - 2*margin
	availHeight := pageHeightPt - 2*margin

	scale := availWidth / width
	if s := availHeight / height; s < scale {
		scale = s
	}

	finalWidth := width * scale
	finalHeight := height * scale

	return pageFit{
		Scale:  scale,
		Width:  finalWidth,
		Height: finalHeight,
		X:      (pageWidthPt - finalWidth) / 2,
		Y:      (pageHeightPt - finalHeight) / 2,
	}
}

// ImageToPDF places a PNG or JPEG image on a single white A4 portrait page.
// Any other image format is rejected outright rather than passed through.
func ImageToPDF(data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.ErrValidation.WithCause(fmt.Errorf("undecodable image: %w", err))
	}

	var imageType string
	switch format {
	case "png":
		imageType = "PNG"
	case "jpeg":
		imageType = "JPEG"
	default:
		return nil, apperrors.ErrValidation.WithCause(fmt.Errorf("unsupported image format %q", format))
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperrors.ErrValidation.WithCause(fmt.Errorf("image has invalid dimensions %dx%d", cfg.Width, cfg.Height))
	}

	fit := fitToPage(float64(cfg.Width), float64(cfg.Height))

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pageWidthPt, Ht: pageHeightPt},
	})
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("attachment", opts, bytes.NewReader(data))
	pdf.ImageOptions("attachment", fit.X, fit.Y, fit.Width, fit.Height, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write image pdf: %w", err)
	}
	return buf.Bytes(), nil
}
