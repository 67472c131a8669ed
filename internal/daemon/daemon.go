// Package daemon implements the long-running background process (aoed):
// a Unix-socket control server plus the status and deletion pollers from
// §4.8. It holds no instance state of its own -- every request re-reads
// and re-saves through the shared storage.Store, so a crashed or
// restarted daemon picks back up from exactly what's on disk.
package daemon

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/gandalfthegui/aoe/internal/config"
	"github.com/gandalfthegui/aoe/internal/multiplex"
	"github.com/gandalfthegui/aoe/internal/orchestrator"
	"github.com/gandalfthegui/aoe/internal/poller"
	"github.com/gandalfthegui/aoe/internal/proto"
	"github.com/gandalfthegui/aoe/internal/runtime"
	"github.com/gandalfthegui/aoe/internal/session"
)

// Daemon owns the control socket and the two background worker goroutines.
type Daemon struct {
	Orch    *orchestrator.Orchestrator
	Log     zerolog.Logger
	Profile string

	status   *poller.StatusPoller
	deletion *poller.DeletionWorker
}

// New wires a Daemon around an already-constructed orchestrator.
func New(orch *orchestrator.Orchestrator, profile string) *Daemon {
	return &Daemon{
		Orch:     orch,
		Log:      orch.Log,
		Profile:  profile,
		status:   poller.NewStatusPoller(),
		deletion: poller.NewDeletionWorker(orch),
	}
}

// Run starts both background workers, the status-tick loop, and the
// control socket listener; it blocks until the listener is closed.
func (d *Daemon) Run(socketPath string) error {
	os.Remove(socketPath)
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer l.Close()

	go d.status.Run()
	go d.deletion.Run()
	go d.tickStatus()
	go d.drainResults()
	go func() {
		for res := range d.deletion.Results {
			instances, tree, err := d.Orch.Store.Load(d.Profile)
			if !res.Success || err != nil {
				continue
			}
			kept := instances[:0]
			for _, inst := range instances {
				if inst.ID != res.InstanceID {
					kept = append(kept, inst)
				}
			}
			_ = d.Orch.Store.Save(d.Profile, kept, tree)
		}
	}()

	d.Log.Info().Str("socket", socketPath).Msg("aoed listening")

	for {
		conn, err := l.Accept()
		if err != nil {
			return nil
		}
		go d.handleConn(conn)
	}
}

// tickStatus pushes a fresh snapshot to the status poller every second;
// the poller itself debounces the expensive container batch call to
// every containerPollInterval (§4.8).
func (d *Daemon) tickStatus() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		instances, err := d.Orch.List(d.Profile)
		if err != nil {
			continue
		}
		select {
		case d.status.Requests <- poller.StatusSnapshot{
			Instances:  instances,
			RuntimeFor: d.runtimeForInstance,
		}:
		default:
		}
	}
}

func (d *Daemon) runtimeForInstance(inst *session.Instance) runtime.Adapter {
	if inst.Sandbox == nil {
		return nil
	}
	resolved, err := config.ResolveChain(d.Orch.HomeDir, d.Profile, inst.ProjectPath)
	if err != nil {
		return d.Orch.RuntimeFor("", inst.Sandbox.Image)
	}
	return d.Orch.RuntimeFor(resolved.Sandbox.ContainerRuntime, inst.Sandbox.Image)
}

// drainResults folds status-poller batches back into storage.
func (d *Daemon) drainResults() {
	for results := range d.status.Results {
		if len(results) == 0 {
			continue
		}
		instances, tree, err := d.Orch.Store.Load(d.Profile)
		if err != nil {
			continue
		}
		byID := map[string]poller.StatusResult{}
		for _, r := range results {
			byID[r.InstanceID] = r
		}
		changed := false
		for _, inst := range instances {
			if r, ok := byID[inst.ID]; ok && inst.Status != r.Status {
				inst.Status = r.Status
				inst.LastError = r.Error
				changed = true
			}
		}
		if changed {
			if err := d.Orch.Store.Save(d.Profile, instances, tree); err != nil {
				d.Log.Warn().Err(err).Msg("persist status results failed")
			}
		}
	}
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	req, err := proto.ReadRequest(reader)
	if err != nil {
		return
	}

	resp := d.dispatch(req)
	if err := proto.WriteResponse(conn, resp); err != nil {
		d.Log.Warn().Err(err).Msg("write response failed")
	}
}

func (d *Daemon) dispatch(req proto.Request) proto.Response {
	switch req.Type {
	case proto.ReqCreate:
		return d.handleCreate(req)
	case proto.ReqStart:
		return d.handleStart(req)
	case proto.ReqStop:
		return d.handleStop(req)
	case proto.ReqRestart:
		return d.handleRestart(req)
	case proto.ReqDelete:
		return d.handleDelete(req)
	case proto.ReqDeleteGroup:
		return d.handleDeleteGroup(req)
	case proto.ReqRename:
		return d.handleRename(req)
	case proto.ReqList:
		return d.handleList(req)
	case proto.ReqAttach:
		return d.handleAttach(req)
	case proto.ReqLogs:
		return d.handleLogs(req)
	default:
		return proto.Response{OK: false, Error: "unknown request type: " + req.Type}
	}
}

func (d *Daemon) handleCreate(req proto.Request) proto.Response {
	p := req.Params
	inst, err := d.Orch.Create(d.Profile, orchestrator.CreateParams{
		Title:           p["title"],
		Path:            p["path"],
		Group:           p["group"],
		Tool:            p["tool"],
		WorktreeBranch:  p["branch"],
		CreateNewBranch: p["new_branch"] == "true",
		Sandbox:         p["sandbox"] == "true",
		SandboxImage:    p["image"],
		YoloMode:        p["yolo"] == "true",
	})
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	return proto.Response{OK: true, Instance: inst}
}

// resolve looks up the instance a request targets. An empty InstanceID
// means "whichever instance hosts the caller" (§ driver-facing API's
// get_current_session_name), letting a command like `aoe stop` run with
// no identifier when invoked from inside its own agent session.
func (d *Daemon) resolve(req proto.Request) (*session.Instance, error) {
	if req.InstanceID == "" {
		return d.Orch.ResolveCurrentSession(d.Profile)
	}
	return d.Orch.ResolveSession(d.Profile, req.InstanceID)
}

func (d *Daemon) handleStart(req proto.Request) proto.Response {
	inst, err := d.resolve(req)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	resolved, err := config.ResolveChain(d.Orch.HomeDir, d.Profile, inst.ProjectPath)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	if err := d.Orch.Start(d.Profile, inst, nil, req.Params["skip_hooks"] == "true", resolved); err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	d.persist(inst)
	return proto.Response{OK: true, Instance: inst}
}

func (d *Daemon) handleStop(req proto.Request) proto.Response {
	inst, err := d.resolve(req)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	rt := d.runtimeForInstance(inst)
	if err := d.Orch.Stop(inst, rt); err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	d.persist(inst)
	return proto.Response{OK: true, Instance: inst}
}

func (d *Daemon) handleRestart(req proto.Request) proto.Response {
	inst, err := d.resolve(req)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	resolved, err := config.ResolveChain(d.Orch.HomeDir, d.Profile, inst.ProjectPath)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	rt := d.runtimeForInstance(inst)
	if err := d.Orch.Restart(d.Profile, inst, nil, resolved, rt); err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	d.persist(inst)
	return proto.Response{OK: true, Instance: inst}
}

func (d *Daemon) handleDelete(req proto.Request) proto.Response {
	inst, err := d.resolve(req)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	opts := orchestrator.DeleteOptions{
		DeleteWorktree: req.Params["delete_worktree"] == "true",
		ForceDelete:    req.Params["force"] == "true",
		DeleteBranch:   req.Params["delete_branch"] == "true",
		DeleteSandbox:  req.Params["delete_sandbox"] != "false",
	}
	rt := d.runtimeForInstance(inst)
	d.deletion.Requests <- poller.DeletionRequest{Instance: inst, Options: opts, Runtime: rt}
	return proto.Response{OK: true}
}

// handleDeleteGroup mirrors handleDelete but targets every instance under
// a group path (§4.7 delete_group); req.InstanceID carries the group path
// the same way it carries a session identifier for the other ops.
func (d *Daemon) handleDeleteGroup(req proto.Request) proto.Response {
	groupPath := req.InstanceID
	opts := orchestrator.DeleteGroupOptions{
		DeleteSessions: req.Params["delete_sessions"] == "true",
		Delete: orchestrator.DeleteOptions{
			DeleteWorktree: req.Params["delete_worktree"] == "true",
			ForceDelete:    req.Params["force"] == "true",
			DeleteBranch:   req.Params["delete_branch"] == "true",
			DeleteSandbox:  req.Params["delete_sandbox"] != "false",
		},
	}
	if err := d.Orch.DeleteGroup(d.Profile, groupPath, opts, d.runtimeForInstance); err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	return proto.Response{OK: true}
}

func (d *Daemon) handleRename(req proto.Request) proto.Response {
	inst, err := d.resolve(req)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	p := req.Params
	if err := d.Orch.Rename(d.Profile, inst, p["title"], p["group"], p["profile"]); err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	return proto.Response{OK: true, Instance: inst}
}

func (d *Daemon) handleList(req proto.Request) proto.Response {
	profile := d.Profile
	if p := req.Params["profile"]; p != "" {
		profile = p
	}
	instances, err := d.Orch.List(profile)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	return proto.Response{OK: true, List: instances}
}

// handleAttach only ensures the session is started and returns the
// instance; the CLI derives the session name and attaches tmux directly since the session is addressable
// from any process on the host (see DESIGN.md's note on the attach
// frame protocol).
func (d *Daemon) handleAttach(req proto.Request) proto.Response {
	inst, err := d.resolve(req)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	resolved, err := config.ResolveChain(d.Orch.HomeDir, d.Profile, inst.ProjectPath)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	agentSession := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
	if !agentSession.Exists() {
		if err := d.Orch.Start(d.Profile, inst, nil, false, resolved); err != nil {
			return proto.Response{OK: false, Error: err.Error()}
		}
		d.persist(inst)
	} else {
		d.Orch.RefreshCredentials(inst)
	}
	return proto.Response{OK: true, Instance: inst}
}

func (d *Daemon) handleLogs(req proto.Request) proto.Response {
	inst, err := d.resolve(req)
	if err != nil {
		return proto.Response{OK: false, Error: err.Error()}
	}
	agentSession := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
	capture := agentSession.CapturePane(500)
	return proto.Response{OK: true, List: capture}
}

func (d *Daemon) persist(inst *session.Instance) {
	instances, tree, err := d.Orch.Store.Load(d.Profile)
	if err != nil {
		return
	}
	for i, existing := range instances {
		if existing.ID == inst.ID {
			instances[i] = inst
		}
	}
	if err := d.Orch.Store.Save(d.Profile, instances, tree); err != nil {
		d.Log.Warn().Err(err).Msg("persist instance failed")
	}
}
