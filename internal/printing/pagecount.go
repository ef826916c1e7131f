package printing

import (
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/adaoss/Mail2printer/internal/constants"
)

// EstimatePages guesses how many pages a file will produce. PDFs report
// their embedded page count, plain text is approximated by line count, and
// everything else is assumed to be a single page. Estimation failures lean
// low rather than blocking the submission.
func EstimatePages(filePath, contentType string) int {
	switch {
	case contentType == "application/pdf" || strings.HasSuffix(strings.ToLower(filePath), ".pdf"):
		count, err := api.PageCountFile(filePath)
		if err != nil || count < 1 {
			return 1
		}
		return count

	case strings.HasPrefix(contentType, "text/"):
		data, err := os.ReadFile(filePath)
		if err != nil {
			return 1
		}
		lines := strings.Count(string(data), "\n") + 1
		pages := lines / constants.TextLinesPerPage
		if pages < 1 {
			return 1
		}
		return pages

	default:
		return 1
	}
}
