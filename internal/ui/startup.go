package ui

// StartupStage enumerates the phases of application start.
type StartupStage int

const (
	StartupStageInit StartupStage = iota
	StartupStageConnecting
	StartupStageOpeningSnapshot
	StartupStageCrawling
	StartupStageReady
)

// StartupReporter receives progress notifications while the address space
// client is being set up or crawled. Implementations should be safe for
// concurrent use.
type StartupReporter interface {
	Stage(stage StartupStage, detail string)
}

// StartupReporterFunc adapts a function to the StartupReporter interface.
type StartupReporterFunc func(stage StartupStage, detail string)

// Stage implements StartupReporter.
func (f StartupReporterFunc) Stage(stage StartupStage, detail string) {
	if f == nil {
		return
	}
	f(stage, detail)
}
