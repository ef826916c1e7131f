package render

import (
	"fmt"
	"strings"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/logger"
)

// bodyMarginMM is the page margin for rendered email bodies. Wider than the
// image-fit margin because body text reads badly edge to edge.
const bodyMarginMM = 20

// HTMLRenderer converts email HTML to PDF through the wkhtmltopdf binary.
// A missing or failing binary surfaces as a render error, which the
// orchestrator answers by falling back to the plain-text path.
type HTMLRenderer struct {
	paperSize   string
	orientation string
	log         logger.Logger
}

func NewHTMLRenderer(opts config.PrintOptionsConfig, log logger.Logger) *HTMLRenderer {
	return &HTMLRenderer{
		paperSize:   opts.PaperSize,
		orientation: opts.Orientation,
		log:         log,
	}
}

// Render sanitizes content-id references and produces PDF bytes for the
// given HTML document.
func (r *HTMLRenderer) Render(html, title string) ([]byte, error) {
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize html renderer: %w", err)
	}

	pdfg.PageSize.Set(wkhtmlPageSize(r.paperSize))
	pdfg.Orientation.Set(wkhtmlOrientation(r.orientation))
	pdfg.MarginTop.Set(bodyMarginMM)
	pdfg.MarginBottom.Set(bodyMarginMM)
	pdfg.MarginLeft.Set(bodyMarginMM)
	pdfg.MarginRight.Set(bodyMarginMM)
	pdfg.Title.Set(title)

	page := wkhtmltopdf.NewPageReader(strings.NewReader(SanitizeCIDReferences(html)))
	page.Encoding.Set("utf-8")
	// Remote resources referenced by marketing mail are frequently dead;
	// a broken image must not fail the whole document.
	page.LoadErrorHandling.Set("ignore")
	page.LoadMediaErrorHandling.Set("ignore")
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("html to pdf conversion failed: %w", err)
	}

	r.log.Debugw("Rendered HTML to PDF", "title", title, "pdf_bytes", pdfg.Buffer().Len())
	return pdfg.Bytes(), nil
}

func wkhtmlPageSize(paperSize string) string {
	switch strings.ToLower(paperSize) {
	case "letter":
		return wkhtmltopdf.PageSizeLetter
	case "legal":
		return wkhtmltopdf.PageSizeLegal
	default:
		return wkhtmltopdf.PageSizeA4
	}
}

func wkhtmlOrientation(orientation string) string {
	switch strings.ToLower(orientation) {
	case "landscape", "reverse-landscape":
		return wkhtmltopdf.OrientationLandscape
	default:
		return wkhtmltopdf.OrientationPortrait
	}
}
