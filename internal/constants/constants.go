package constants

import "time"

const (
	DefaultCheckInterval = 60 * time.Second
	MinCheckInterval     = 5 * time.Second
)

const (
	// Post-submission wait budget for attachment batches where no job id
	// is available to poll: min(BaseWaitTime + n*WaitPerAttachment, MaxWaitTime).
	BaseWaitTime      = 5 * time.Second
	WaitPerAttachment = 2 * time.Second
	MaxWaitTime       = 30 * time.Second
)

const (
	JobPollInterval       = 1 * time.Second
	DefaultJobWaitTimeout = 30 * time.Second

	// Upper bound on tracked print jobs; older entries are evicted first.
	JobRegistryCapacity = 200
)

const (
	SeenCacheHighWater = 1000
	SeenCacheLowWater  = 500
)

const (
	TextLinesPerPage = 60
)

// IPP enum values for orientation-requested and print-quality.
const (
	OrientationPortrait         = 3
	OrientationLandscape        = 4
	OrientationReverseLandscape = 5
	OrientationReversePortrait  = 6
)

const (
	QualityDraft  = 3
	QualityNormal = 4
	QualityHigh   = 5
)

const (
	SidesOneSided         = "one-sided"
	SidesTwoSidedLongEdge = "two-sided-long-edge"
	SidesTwoSidedShort    = "two-sided-short-edge"
)

const (
	ColorModeColor      = "color"
	ColorModeMonochrome = "monochrome"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)
