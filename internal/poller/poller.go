// Package poller implements the two background workers from §4.8: a
// status poller that refreshes multiplexer/container state and classifies
// panes, and a deletion worker that serialises the delete pipeline. Both
// own a dedicated goroutine and communicate with the foreground driver
// exclusively through channels -- the driver never blocks on them outside
// of a try-receive.
package poller

import (
	"time"

	"github.com/gandalfthegui/aoe/internal/multiplex"
	"github.com/gandalfthegui/aoe/internal/orchestrator"
	"github.com/gandalfthegui/aoe/internal/runtime"
	"github.com/gandalfthegui/aoe/internal/session"
	"github.com/gandalfthegui/aoe/internal/status"
)

// StatusSnapshot is what the driver pushes to the status poller on each
// tick: the instances currently known, plus enough context to resolve
// each one's runtime adapter.
type StatusSnapshot struct {
	Instances []*session.Instance
	RuntimeFor func(*session.Instance) runtime.Adapter
}

// StatusResult is one classification outcome.
type StatusResult struct {
	InstanceID string
	Status     session.Status
	Error      string
}

const (
	containerPollInterval = 5 * time.Second
	startingGrace          = 3 * time.Second
	errorSkipWindow        = 30 * time.Second
	containerNamePrefix    = "aoe-sandbox-"
)

// StatusPoller owns a goroutine reading snapshots off Requests and
// publishing batched results on Results.
type StatusPoller struct {
	Requests chan StatusSnapshot
	Results  chan []StatusResult

	lastContainerPoll time.Time
	containerStates   map[string]bool
	lastErrorAt       map[string]time.Time
}

func NewStatusPoller() *StatusPoller {
	return &StatusPoller{
		Requests:        make(chan StatusSnapshot, 1),
		Results:         make(chan []StatusResult, 1),
		containerStates: map[string]bool{},
		lastErrorAt:     map[string]time.Time{},
	}
}

// Run processes snapshots until Requests is closed; intended to be
// launched with `go p.Run()` from a dedicated OS thread
// (runtime.LockOSThread is unnecessary here since all work is blocking
// subprocess I/O, not cgo/thread-affine syscalls).
func (p *StatusPoller) Run() {
	for snap := range p.Requests {
		p.tick(snap)
	}
}

func (p *StatusPoller) tick(snap StatusSnapshot) {
	multiplex.RefreshSessionCache()

	if time.Since(p.lastContainerPoll) >= containerPollInterval {
		// Single batch call per tick, as required by §4.1/§4.8.
		var rt runtime.Adapter
		for _, inst := range snap.Instances {
			if inst.Sandbox != nil && inst.Sandbox.Enabled {
				rt = snap.RuntimeFor(inst)
				break
			}
		}
		if rt != nil {
			p.containerStates = rt.BatchRunningStates(containerNamePrefix)
		}
		p.lastContainerPoll = time.Now()
	}

	var results []StatusResult
	for _, inst := range snap.Instances {
		if skipStatus(inst.Status) {
			continue
		}

		if time.Since(inst.LastStartTime) < startingGrace {
			results = append(results, StatusResult{InstanceID: inst.ID, Status: session.StatusStarting})
			continue
		}

		if inst.Status == session.StatusError {
			if at, ok := p.lastErrorAt[inst.ID]; ok && time.Since(at) < errorSkipWindow {
				continue
			}
		}

		if inst.Sandbox != nil && inst.Sandbox.Enabled {
			running, known := p.containerStates[inst.Sandbox.ContainerName]
			if known && !running {
				p.lastErrorAt[inst.ID] = time.Now()
				results = append(results, StatusResult{
					InstanceID: inst.ID,
					Status:     session.StatusError,
					Error:      "Container is not running",
				})
				continue
			}
		}

		agentSession := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
		capture := agentSession.CapturePane(50)
		fgPID, havePID := 0, false
		if pid, err := agentSession.ForegroundPID(); err == nil {
			fgPID, havePID = pid, true
		}
		detected := status.Detect(inst.Tool, capture, fgPID, havePID)
		results = append(results, StatusResult{InstanceID: inst.ID, Status: session.Status(detected)})
	}

	select {
	case p.Results <- results:
	default:
		// Driver hasn't drained the previous batch yet; drop this one --
		// the next tick supersedes it.
	}
}

func skipStatus(s session.Status) bool {
	switch s {
	case session.StatusStopped, session.StatusDeleting:
		return true
	default:
		return false
	}
}

// DeletionRequest is one delete job submitted by the driver.
type DeletionRequest struct {
	Instance *session.Instance
	Options  orchestrator.DeleteOptions
	Runtime  runtime.Adapter
}

// DeletionResult reports the outcome of one DeletionRequest.
type DeletionResult struct {
	InstanceID string
	Success    bool
	Error      string
}

// DeletionWorker serialises deletions FIFO on a dedicated goroutine so
// that cleanup of a session never races with its own status refresh.
type DeletionWorker struct {
	Requests chan DeletionRequest
	Results  chan DeletionResult
	orch     *orchestrator.Orchestrator
}

func NewDeletionWorker(orch *orchestrator.Orchestrator) *DeletionWorker {
	return &DeletionWorker{
		Requests: make(chan DeletionRequest, 16),
		Results:  make(chan DeletionResult, 16),
		orch:     orch,
	}
}

func (w *DeletionWorker) Run() {
	for req := range w.Requests {
		err := w.orch.Delete(req.Instance, req.Options, req.Runtime)
		result := DeletionResult{InstanceID: req.Instance.ID, Success: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		w.Results <- result
	}
}
