package printing

import (
	"fmt"
	"strings"

	"github.com/adaoss/Mail2printer/internal/config"
	"github.com/adaoss/Mail2printer/internal/constants"
)

// JobOptions is one submission's resolved print options. The zero value is
// not useful; build it from configuration and apply per-file overrides.
type JobOptions struct {
	Media       string
	Orientation int
	Quality     int
	Sides       string
	ColorMode   string
	Copies      int
}

func OptionsFromConfig(opts config.PrintOptionsConfig, copies int) JobOptions {
	if copies < 1 {
		copies = 1
	}
	return JobOptions{
		Media:       mediaName(opts.PaperSize),
		Orientation: orientationCode(opts.Orientation),
		Quality:     qualityCode(opts.Quality),
		Sides:       sidesName(opts.Duplex),
		ColorMode:   colorModeName(opts.ColorMode),
		Copies:      copies,
	}
}

// ForcePortrait returns a copy with the orientation override applied.
// Incoming attachments carry untrusted orientation metadata, so PDF and
// image submissions always print portrait.
func (o JobOptions) ForcePortrait() JobOptions {
	o.Orientation = constants.OrientationPortrait
	return o
}

// ForceA4 returns a copy pinned to A4 media, used for image conversions
// whose page-fit math assumes A4 dimensions.
func (o JobOptions) ForceA4() JobOptions {
	o.Media = "A4"
	return o
}

// IPPAttributes encodes the options as job attributes for the spooler
// protocol. print-color-mode is missing from the client's attribute tag
// table and can only be carried on the command-line path.
func (o JobOptions) IPPAttributes() map[string]interface{} {
	attrs := map[string]interface{}{
		"media":                 o.Media,
		"orientation-requested": o.Orientation,
		"print-quality":         o.Quality,
		"sides":                 o.Sides,
	}
	if o.Copies > 1 {
		attrs["copies"] = o.Copies
	}
	return attrs
}

// LPArguments encodes the options as lp(1) arguments, key=value pairs via
// -o plus -n for copies.
func (o JobOptions) LPArguments() []string {
	args := []string{
		"-o", fmt.Sprintf("media=%s", o.Media),
		"-o", fmt.Sprintf("orientation-requested=%d", o.Orientation),
		"-o", fmt.Sprintf("print-quality=%d", o.Quality),
		"-o", fmt.Sprintf("sides=%s", o.Sides),
		"-o", fmt.Sprintf("print-color-mode=%s", o.ColorMode),
	}
	if o.Copies > 1 {
		args = append(args, "-n", fmt.Sprintf("%d", o.Copies))
	}
	return args
}

func mediaName(paperSize string) string {
	switch strings.ToLower(paperSize) {
	case "letter":
		return "Letter"
	case "legal":
		return "Legal"
	default:
		return "A4"
	}
}

func orientationCode(orientation string) int {
	switch strings.ToLower(orientation) {
	case "landscape":
		return constants.OrientationLandscape
	case "reverse-landscape":
		return constants.OrientationReverseLandscape
	case "reverse-portrait":
		return constants.OrientationReversePortrait
	default:
		return constants.OrientationPortrait
	}
}

func qualityCode(quality string) int {
	switch strings.ToLower(quality) {
	case "draft":
		return constants.QualityDraft
	case "high":
		return constants.QualityHigh
	default:
		return constants.QualityNormal
	}
}

func sidesName(duplex string) string {
	switch strings.ToLower(duplex) {
	case constants.SidesTwoSidedLongEdge:
		return constants.SidesTwoSidedLongEdge
	case constants.SidesTwoSidedShort:
		return constants.SidesTwoSidedShort
	default:
		return constants.SidesOneSided
	}
}

func colorModeName(colorMode string) string {
	if strings.ToLower(colorMode) == constants.ColorModeColor {
		return constants.ColorModeColor
	}
	return constants.ColorModeMonochrome
}
