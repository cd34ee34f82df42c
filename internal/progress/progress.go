// Package progress carries step notifications from long-running operations
// to whichever front end is rendering them.
package progress

// Step names a stage of an install.
type Step string

const (
	StepManifest   Step = "manifest"
	StepArtifact   Step = "artifact"
	StepDependency Step = "dependency"
	StepRuntime    Step = "runtime"
	StepCommit     Step = "commit"
)

// State is the lifecycle of a single step item.
type State string

const (
	StatePending     State = "pending"
	StateResolving   State = "resolving"
	StateDownloading State = "downloading"
	StateExtracting  State = "extracting"
	StateCached      State = "cached"
	StateDone        State = "complete"
	StateFailed      State = "error"
)

// Event is emitted each time an item changes state.
type Event struct {
	Step   Step
	Item   string
	State  State
	Detail string
}

// Key identifies the row an event belongs to.
func (e Event) Key() string {
	return string(e.Step) + ":" + e.Item
}

// Reporter receives progress events. Implementations must tolerate calls
// from the goroutine running the operation.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report implements Reporter.
func (f ReporterFunc) Report(e Event) { f(e) }

// Nop discards every event.
var Nop Reporter = ReporterFunc(func(Event) {})

// OrNop returns r, or Nop when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop
	}
	return r
}

// Recorder keeps events in memory; handy for tests and JSON summaries.
type Recorder struct {
	Events []Event
}

// Report implements Reporter.
func (r *Recorder) Report(e Event) {
	r.Events = append(r.Events, e)
}

// Final returns the last state recorded for each key, in first-seen order.
func (r *Recorder) Final() []Event {
	index := make(map[string]int)
	var out []Event
	for _, e := range r.Events {
		if i, ok := index[e.Key()]; ok {
			out[i] = e
			continue
		}
		index[e.Key()] = len(out)
		out = append(out, e)
	}
	return out
}
