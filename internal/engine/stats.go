package engine

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats holds the process-wide pipeline counters. The polling loop is
// the only writer; the control API reads concurrently, so every counter
// is atomic.
type Stats struct {
	startTime time.Time

	emailsProcessed atomic.Int64
	emailsPrinted   atomic.Int64
	emailsSkipped   atomic.Int64
	emailsFiltered  atomic.Int64
	duplicates      atomic.Int64
	printJobsFailed atomic.Int64
	cyclesCompleted atomic.Int64
	lastCycleUnix   atomic.Int64
}

func NewStats() *Stats {
	return &Stats{startTime: time.Now().UTC()}
}

func (s *Stats) AddProcessed(n int) { s.emailsProcessed.Add(int64(n)) }
func (s *Stats) AddPrinted(n int)   { s.emailsPrinted.Add(int64(n)) }
func (s *Stats) AddSkipped(n int)   { s.emailsSkipped.Add(int64(n)) }
func (s *Stats) AddFailed(n int)    { s.printJobsFailed.Add(int64(n)) }
func (s *Stats) IncFiltered()       { s.emailsFiltered.Add(1) }
func (s *Stats) IncDuplicate()      { s.duplicates.Add(1) }

func (s *Stats) IncCycle() {
	s.cyclesCompleted.Add(1)
	s.lastCycleUnix.Store(time.Now().Unix())
}

// Snapshot is the JSON shape served by the stats endpoint.
type Snapshot struct {
	EmailsProcessed   int64     `json:"emails_processed"`
	EmailsPrinted     int64     `json:"emails_printed"`
	EmailsSkipped     int64     `json:"emails_skipped"`
	EmailsFiltered    int64     `json:"emails_filtered"`
	DuplicatesSkipped int64     `json:"duplicates_skipped"`
	PrintJobsFailed   int64     `json:"print_jobs_failed"`
	CyclesCompleted   int64     `json:"cycles_completed"`
	ServiceStartTime  time.Time `json:"service_start_time"`
	LastCycleAt       string    `json:"last_cycle_at,omitempty"`
	Uptime            string    `json:"uptime"`
	SuccessRate       float64   `json:"success_rate_percent"`
}

func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		EmailsProcessed:   s.emailsProcessed.Load(),
		EmailsPrinted:     s.emailsPrinted.Load(),
		EmailsSkipped:     s.emailsSkipped.Load(),
		EmailsFiltered:    s.emailsFiltered.Load(),
		DuplicatesSkipped: s.duplicates.Load(),
		PrintJobsFailed:   s.printJobsFailed.Load(),
		CyclesCompleted:   s.cyclesCompleted.Load(),
		ServiceStartTime:  s.startTime,
		Uptime:            formatUptime(time.Since(s.startTime)),
	}
	if last := s.lastCycleUnix.Load(); last > 0 {
		snap.LastCycleAt = time.Unix(last, 0).UTC().Format(time.RFC3339)
	}
	if snap.EmailsProcessed > 0 {
		snap.SuccessRate = float64(snap.EmailsPrinted) / float64(snap.EmailsProcessed) * 100
	}
	return snap
}

func formatUptime(d time.Duration) string {
	seconds := d.Seconds()
	switch {
	case seconds > 3600:
		hours := int(seconds) / 3600
		minutes := (int(seconds) % 3600) / 60
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case seconds > 60:
		minutes := int(seconds) / 60
		return fmt.Sprintf("%dm %ds", minutes, int(seconds)%60)
	default:
		return fmt.Sprintf("%.1f seconds", seconds)
	}
}
