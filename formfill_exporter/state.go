package formfill_exporter

import (
	"fmt"
	"sync"
)

// Stage is the coarse state of the exporter.
type Stage int

const (
	StageIdle Stage = iota
	StageResolvingPaths
	StageDownloading
	StageFinalizing
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageResolvingPaths:
		return "resolving_paths"
	case StageDownloading:
		return "downloading"
	case StageFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Phase is the exporter state. Page and Pages are set while downloading or
// finalizing page Page of Pages.
type Phase struct {
	Stage Stage
	Page  int
	Pages int
}

// Progress is the user-facing description of the phase; "" when idle.
func (p Phase) Progress() string {
	switch p.Stage {
	case StageResolvingPaths:
		return "Preparing export"
	case StageDownloading:
		if p.Pages > 1 {
			return fmt.Sprintf("Downloading page %d/%d", p.Page, p.Pages)
		}
		return "Downloading"
	case StageFinalizing:
		if p.Pages > 1 {
			return fmt.Sprintf("Saving page %d/%d", p.Page, p.Pages)
		}
		return "Saving"
	default:
		return ""
	}
}

// exportGuard serializes export operations. Only one operation may leave Idle
// at a time, and within an operation the phase only moves forward:
//
//	Idle -> ResolvingPaths -> Downloading(1/n) -> Finalizing(1/n)
//	Finalizing(i/n) -> Downloading(i+1/n)
//	any -> Idle
type exportGuard struct {
	mu    sync.Mutex
	phase Phase
}

// begin enters ResolvingPaths, or returns ErrExportInProgress if not idle.
func (g *exportGuard) begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase.Stage != StageIdle {
		return ErrExportInProgress
	}
	g.phase = Phase{Stage: StageResolvingPaths}
	return nil
}

// downloading enters Downloading(page/pages).
func (g *exportGuard) downloading(page, pages int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := false
	switch g.phase.Stage {
	case StageResolvingPaths:
		ok = page == 1 && pages >= 1
	case StageFinalizing:
		ok = page == g.phase.Page+1 && pages == g.phase.Pages && page <= pages
	}
	if !ok {
		return fmt.Errorf("illegal transition from %s %d/%d to downloading %d/%d",
			g.phase.Stage, g.phase.Page, g.phase.Pages, page, pages)
	}
	g.phase = Phase{Stage: StageDownloading, Page: page, Pages: pages}
	return nil
}

// finalizing enters Finalizing for the page being downloaded.
func (g *exportGuard) finalizing() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase.Stage != StageDownloading {
		return fmt.Errorf("illegal transition from %s to finalizing", g.phase.Stage)
	}
	g.phase.Stage = StageFinalizing
	return nil
}

// end returns to Idle.
func (g *exportGuard) end() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.phase = Phase{}
}

func (g *exportGuard) current() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}
