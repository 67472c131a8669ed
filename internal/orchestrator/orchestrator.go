// Package orchestrator composes the runtime adapter, worktree manager,
// credential sync, multiplexer adapter, and storage into the session
// lifecycle operations described in §4.7: create, start, stop, restart,
// delete, delete_group, rename, and container_workdir. Attach is not an
// operation here: the daemon starts the session if needed and the CLI
// attaches to tmux itself.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gandalfthegui/aoe/internal/agents"
	"github.com/gandalfthegui/aoe/internal/config"
	"github.com/gandalfthegui/aoe/internal/credsync"
	"github.com/gandalfthegui/aoe/internal/errs"
	"github.com/gandalfthegui/aoe/internal/multiplex"
	"github.com/gandalfthegui/aoe/internal/runtime"
	"github.com/gandalfthegui/aoe/internal/session"
	"github.com/gandalfthegui/aoe/internal/storage"
	"github.com/gandalfthegui/aoe/internal/worktree"
)

// Orchestrator holds the dependencies every operation needs. It keeps no
// instance state in memory: each operation loads the profile's instances
// and group tree from Store and saves them back after a mutation.
type Orchestrator struct {
	Store       *storage.Store
	RuntimeFor  func(engine string, image string) runtime.Adapter
	Log         zerolog.Logger
	HomeDir     string // app config dir, e.g. ~/.aoe
	HostHomeDir string // real user home, e.g. ~ -- source of credential sync
}

// credsyncDir is the shared per-agent directory bind-mounted into every
// sandboxed container for that tool, kept under the app dir so it survives
// container recreation.
func (o *Orchestrator) credsyncDir(tool string) string {
	return filepath.Join(o.HomeDir, "creds", tool)
}

// syncCredentials runs the best-effort credential mirror for inst's tool
// (§4.3, §7's "refreshing credential sync on every attach" propagation
// rule). A missing AgentRecord or sync failure only logs a warning; it is
// a no-op for non-sandboxed instances, since the shared credential
// directory is only ever bind-mounted into a container.
func (o *Orchestrator) syncCredentials(inst *session.Instance) {
	if inst.Sandbox == nil || !inst.Sandbox.Enabled {
		return
	}
	rec, ok := credsync.Agents[inst.Tool]
	if !ok || o.HostHomeDir == "" {
		return
	}
	hostDir := filepath.Join(o.HostHomeDir, rec.HostRel)
	err := credsync.Sync(rec, hostDir, o.credsyncDir(inst.Tool), func(format string, args ...any) {
		o.Log.Warn().Str("instance_id", inst.ID).Msgf(format, args...)
	})
	if err != nil {
		o.Log.Warn().Err(err).Str("instance_id", inst.ID).Msg("credential sync failed")
	}
}

// RefreshCredentials re-runs credential sync, independent of whether the
// container already exists. The daemon's attach handler calls this when
// the agent session is already running (§7): ensureContainer syncs on
// every sandboxed Start, but attaching to a running session skips Start.
func (o *Orchestrator) RefreshCredentials(inst *session.Instance) {
	o.syncCredentials(inst)
}

// CreateParams mirrors §4.7 create(params).
type CreateParams struct {
	Title           string
	Path            string
	Group           string
	Tool            string
	WorktreeBranch  string
	CreateNewBranch bool
	Sandbox         bool
	SandboxImage    string
	YoloMode        bool
	ExtraEnvKeys    []string
	ExtraEnvValues  []string
}

// Create builds a new instance record and persists it. It does not start
// any multiplexer session or container -- those are deferred to Start.
func (o *Orchestrator) Create(profile string, params CreateParams) (*session.Instance, error) {
	instances, tree, err := o.Store.Load(profile)
	if err != nil {
		return nil, err
	}

	title := params.Title
	if title == "" {
		title = uniqueTitle(instances, params.Tool)
	}

	inst := &session.Instance{
		ID:          uniqueID(instances),
		Title:       title,
		GroupPath:   params.Group,
		Tool:        params.Tool,
		YoloMode:    params.YoloMode,
		ProjectPath: params.Path,
		Status:      session.StatusIdle,
		CreatedAt:   time.Now(),
	}

	if params.WorktreeBranch != "" {
		mgr, err := worktree.New(params.Path)
		if err != nil {
			return nil, fmt.Errorf("worktree manager: %w", err)
		}
		wtPath := mgr.ComputePath(params.WorktreeBranch, "../{repo-name}-worktrees/{branch}", session.First8(inst.ID))
		if err := mgr.CreateWorktree(params.WorktreeBranch, wtPath, params.CreateNewBranch); err != nil {
			return nil, fmt.Errorf("create worktree: %w", err)
		}
		inst.ProjectPath = wtPath
		inst.Worktree = &session.WorktreeInfo{
			Branch:          params.WorktreeBranch,
			MainRepoPath:    mgr.RepoPath,
			ManagedByAoe:    true,
			CreatedAt:       time.Now(),
			CleanupOnDelete: true,
		}
	}

	if params.Sandbox {
		image := params.SandboxImage
		if image == "" {
			if resolved, err := config.ResolveChain(o.HomeDir, profile, params.Path); err == nil {
				image = resolved.Sandbox.DefaultImage
			}
		}
		if image == "" {
			image = o.RuntimeFor("", "").EffectiveDefaultImage()
		}
		inst.Sandbox = &session.SandboxInfo{
			Enabled:        true,
			Image:          image,
			ContainerName:  session.ContainerName(inst.ID),
			ExtraEnvKeys:   params.ExtraEnvKeys,
			ExtraEnvValues: params.ExtraEnvValues,
		}
	}

	instances = append(instances, inst)
	tree.Ensure(inst.GroupPath)
	if err := o.Store.Save(profile, instances, tree); err != nil {
		return nil, err
	}
	return inst, nil
}

// uniqueID retries session.NewID until its 16-hex-character prefix
// doesn't collide with an existing instance in the profile, mirroring
// the donor's own nextInstanceID collision-retry loop (there it retries
// over a small alphabet-based allocator; here a fresh random uuid is
// vanishingly unlikely to collide, but the same discipline applies).
func uniqueID(instances []*session.Instance) string {
	for {
		id := session.NewID()
		collide := false
		for _, i := range instances {
			if i.ID == id {
				collide = true
				break
			}
		}
		if !collide {
			return id
		}
	}
}

func uniqueTitle(instances []*session.Instance, tool string) string {
	base := tool
	if base == "" {
		base = "session"
	}
	existing := map[string]bool{}
	for _, i := range instances {
		existing[i.Title] = true
	}
	if !existing[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !existing[candidate] {
			return candidate
		}
	}
}

// Start resolves hooks, ensures the container (if sandboxed) and the
// agent multiplexer session, and transitions status to Starting. It is a
// no-op if the agent session already exists (idempotent start, §8).
func (o *Orchestrator) Start(profile string, inst *session.Instance, size *multiplex.Size, skipHooks bool, resolved config.Resolved) error {
	agentSession := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
	if agentSession.Exists() {
		return nil
	}

	var rt runtime.Adapter
	if inst.Sandbox != nil && inst.Sandbox.Enabled {
		rt = o.RuntimeFor(resolved.Sandbox.ContainerRuntime, inst.Sandbox.Image)
		if err := o.ensureContainer(rt, inst); err != nil {
			inst.Status = session.StatusError
			inst.LastError = err.Error()
			return err
		}
		if !skipHooks {
			for _, hook := range resolved.OnLaunch {
				workdir := o.ContainerWorkdir(inst)
				_, _, _ = rt.Exec(inst.Sandbox.ContainerName, []string{"sh", "-c", "cd " + workdir + " && " + hook})
			}
		}
	} else if !skipHooks {
		for _, hook := range resolved.OnLaunch {
			if err := runShell(hook, inst.ProjectPath); err != nil {
				o.Log.Warn().Err(err).Str("hook", hook).Msg("on_launch hook failed")
			}
		}
	}

	launchCmd, err := o.buildLaunchCommand(inst, rt, resolved)
	if err != nil {
		return err
	}

	// The agent session for a sandboxed instance still runs on the host
	// (it execs into the container), so cwd is always the host project
	// path; the container exec's own -w flag carries the in-container
	// working directory.
	wrapped := multiplex.WrapAgentCommand(launchCmd)
	if err := agentSession.Create(inst.ProjectPath, wrapped, size); err != nil {
		inst.Status = session.StatusError
		inst.LastError = err.Error()
		return err
	}

	inst.Status = session.StatusStarting
	inst.LastStartTime = time.Now()
	return nil
}

func (o *Orchestrator) ensureContainer(rt runtime.Adapter, inst *session.Instance) error {
	o.syncCredentials(inst)
	name := inst.Sandbox.ContainerName
	exists, _ := rt.DoesContainerExist(name)
	if !exists {
		if err := rt.EnsureImage(inst.Sandbox.Image); err != nil {
			return err
		}
		cfg := o.buildContainerConfig(inst)
		id, err := rt.Create(name, inst.Sandbox.Image, cfg)
		if err != nil {
			return err
		}
		inst.Sandbox.ContainerID = id
		now := time.Now()
		inst.Sandbox.CreatedAt = &now
		return nil
	}
	running, _ := rt.IsRunning(name)
	if !running {
		return rt.Start(name)
	}
	return nil
}

// buildContainerConfig applies the mount-path planner (§4.7.1) plus
// environment assembly (§4.7.2).
func (o *Orchestrator) buildContainerConfig(inst *session.Instance) runtime.ContainerConfig {
	host, containerBase, workdir := o.planMount(inst.ProjectPath)

	cfg := runtime.ContainerConfig{
		WorkingDir: workdir,
		Volumes: []runtime.VolumeMount{
			{HostPath: host, ContainerPath: containerBase, ReadOnly: false},
		},
	}
	if rec, ok := credsync.Agents[inst.Tool]; ok && inst.Sandbox != nil {
		cfg.Volumes = append(cfg.Volumes, runtime.VolumeMount{
			HostPath:      o.credsyncDir(inst.Tool),
			ContainerPath: "/root/" + rec.ContainerSuffix,
			ReadOnly:      false,
		})
	}
	cfg.Environment = o.assembleEnvironment(inst)
	return cfg
}

// planMount implements §4.7.1: bare-repo worktrees mount the whole main
// repo so the container sees .bare/worktrees too; everything else mounts
// just the project path.
func (o *Orchestrator) planMount(projectPath string) (host, containerBase, workdir string) {
	if mainRepo, err := worktree.FindMainRepo(projectPath); err == nil {
		if worktree.IsBareRepo(mainRepo) && mainRepo != projectPath {
			rel, relErr := filepath.Rel(mainRepo, projectPath)
			base := "/workspace/" + filepath.Base(mainRepo)
			if relErr == nil {
				return mainRepo, base, filepath.Join(base, rel)
			}
			return mainRepo, base, base
		}
	}
	base := "/workspace/" + filepath.Base(projectPath)
	return projectPath, base, base
}

// ContainerWorkdir returns the working directory to pass to `exec`.
func (o *Orchestrator) ContainerWorkdir(inst *session.Instance) string {
	_, _, workdir := o.planMount(inst.ProjectPath)
	return workdir
}

// assembleEnvironment implements §4.7.2.
func (o *Orchestrator) assembleEnvironment(inst *session.Instance) [][2]string {
	var env [][2]string

	if inst.Sandbox != nil {
		for _, k := range inst.Sandbox.ExtraEnvKeys {
			if v, ok := os.LookupEnv(k); ok {
				env = append(env, [2]string{k, v})
			}
		}
	}

	if spec, ok := agents.Get(inst.Tool); ok {
		env = append(env, spec.ContainerEnv...)
		if inst.YoloMode && spec.YoloKind == agents.YoloEnvVar {
			if k, v, found := strings.Cut(spec.YoloValue, "="); found {
				env = append(env, [2]string{k, v})
			}
		}
	}

	if inst.Sandbox != nil {
		for _, kv := range inst.Sandbox.ExtraEnvValues {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			env = append(env, [2]string{k, expandAgainstHost(v)})
		}
	}

	return env
}

func expandAgainstHost(v string) string {
	return os.Expand(v, os.Getenv)
}

// buildLaunchCommand implements §4.7.3 (YOLO / custom instruction) on top
// of the container-vs-host launch-command split from Start.
func (o *Orchestrator) buildLaunchCommand(inst *session.Instance, rt runtime.Adapter, resolved config.Resolved) (string, error) {
	spec, ok := agents.Get(inst.Tool)
	if !ok {
		return "", fmt.Errorf("%s: %w", inst.Tool, errs.ErrToolBinaryMissing)
	}

	binary := spec.Binary
	if inst.Command != "" {
		binary = inst.Command
	}

	parts := []string{binary}
	if inst.YoloMode && spec.YoloKind == agents.YoloFlag {
		parts = append(parts, spec.YoloValue)
	}

	if inst.Sandbox != nil && inst.Sandbox.CustomInstruction != "" {
		if spec.InstructionFlag != "" {
			escaped := shellEscape(inst.Sandbox.CustomInstruction)
			flag := strings.ReplaceAll(spec.InstructionFlag, "{}", escaped)
			parts = append(parts, flag)
		}
		// Absence of InstructionFlag means the instruction is silently
		// dropped; no warning is emitted for it anywhere in this module.
	}

	var prefix string
	if inst.YoloMode && spec.YoloKind == agents.YoloEnvVar {
		prefix = spec.YoloValue + " "
	}

	cmdLine := prefix + strings.Join(parts, " ")

	if inst.Sandbox != nil && inst.Sandbox.Enabled && rt != nil {
		workdir := o.ContainerWorkdir(inst)
		options := "-w " + workdir
		for _, kv := range o.assembleEnvironment(inst) {
			options += fmt.Sprintf(" -e %s=%s", kv[0], shellEscape(kv[1]))
		}
		execStr := rt.ExecCommandString(inst.Sandbox.ContainerName, options) +
			" sh -c " + shellEscape(cmdLine)
		return execStr, nil
	}
	return cmdLine, nil
}

func shellEscape(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Stop kills the agent multiplexer session and, if sandboxed, stops (not
// removes) the container. Both steps are idempotent (§8).
func (o *Orchestrator) Stop(inst *session.Instance, rt runtime.Adapter) error {
	agentSession := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
	if agentSession.Exists() {
		if err := agentSession.Kill(); err != nil {
			return err
		}
	}
	if inst.Sandbox != nil && inst.Sandbox.Enabled && rt != nil {
		running, _ := rt.IsRunning(inst.Sandbox.ContainerName)
		if running {
			if err := rt.Stop(inst.Sandbox.ContainerName); err != nil {
				return err
			}
		}
	}
	inst.Status = session.StatusStopped
	return nil
}

// Restart kills the existing session if any, sleeps briefly for cleanup,
// then starts again.
func (o *Orchestrator) Restart(profile string, inst *session.Instance, size *multiplex.Size, resolved config.Resolved, rt runtime.Adapter) error {
	agentSession := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
	if agentSession.Exists() {
		_ = agentSession.Kill()
	}
	time.Sleep(100 * time.Millisecond)
	return o.Start(profile, inst, size, false, resolved)
}

// DeleteOptions mirrors §4.7 delete(instance, options).
type DeleteOptions struct {
	DeleteWorktree bool
	ForceDelete    bool
	DeleteBranch   bool
	DeleteSandbox  bool
}

// Delete performs the in-order cleanup steps from §4.7, aggregating
// errors rather than short-circuiting so later steps still run.
func (o *Orchestrator) Delete(inst *session.Instance, opts DeleteOptions, rt runtime.Adapter) error {
	var agg errs.AggregateError

	worktreeFailed := false
	if opts.DeleteWorktree && inst.Worktree != nil && inst.Worktree.ManagedByAoe {
		mgr, err := worktree.New(inst.Worktree.MainRepoPath)
		if err != nil {
			agg.Add(err)
			worktreeFailed = true
		} else if err := mgr.RemoveWorktree(inst.ProjectPath, opts.ForceDelete); err != nil {
			agg.Add(err)
			worktreeFailed = true
		}
	}

	if opts.DeleteBranch && !worktreeFailed && inst.Worktree != nil {
		mgr, err := worktree.New(inst.Worktree.MainRepoPath)
		if err == nil {
			agg.Add(mgr.DeleteBranch(inst.Worktree.Branch))
		} else {
			agg.Add(err)
		}
	}

	if opts.DeleteSandbox && inst.Sandbox != nil && rt != nil {
		exists, _ := rt.DoesContainerExist(inst.Sandbox.ContainerName)
		if exists {
			agg.Add(rt.Remove(inst.Sandbox.ContainerName, true))
		}
	}

	agentSession := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
	if agentSession.Exists() {
		agg.Add(agentSession.Kill())
	}

	return agg.ErrOrNil()
}

// DeleteGroupOptions mirrors §4.7 delete_group(options).
type DeleteGroupOptions struct {
	DeleteSessions bool
	Delete         DeleteOptions
}

// DeleteGroup applies Delete to every instance in groupPath (or nested
// under it) when DeleteSessions is set; otherwise moves them to the
// default (ungrouped) path instead. The group path is removed from the
// tree either way.
func (o *Orchestrator) DeleteGroup(profile, groupPath string, opts DeleteGroupOptions, rtFor func(*session.Instance) runtime.Adapter) error {
	instances, tree, err := o.Store.Load(profile)
	if err != nil {
		return err
	}

	var remaining []*session.Instance
	var agg errs.AggregateError
	for _, inst := range instances {
		if inst.GroupPath == groupPath || strings.HasPrefix(inst.GroupPath, groupPath+"/") {
			if opts.DeleteSessions {
				inst.Status = session.StatusDeleting
				if err := o.Delete(inst, opts.Delete, rtFor(inst)); err != nil {
					agg.Add(err)
					remaining = append(remaining, inst)
				}
				continue
			}
			inst.GroupPath = ""
		}
		remaining = append(remaining, inst)
	}

	tree.Remove(groupPath)
	if err := o.Store.Save(profile, remaining, tree); err != nil {
		return err
	}
	return agg.ErrOrNil()
}

// ResolveSession finds the instance matching identifier against id,
// id-prefix, or title (in that priority order), per §6.
func (o *Orchestrator) ResolveSession(profile, identifier string) (*session.Instance, error) {
	instances, _, err := o.Store.Load(profile)
	if err != nil {
		return nil, err
	}
	for _, inst := range instances {
		if inst.ID == identifier {
			return inst, nil
		}
	}
	var prefixMatch *session.Instance
	for _, inst := range instances {
		if strings.HasPrefix(inst.ID, identifier) {
			if prefixMatch != nil {
				prefixMatch = nil
				break
			}
			prefixMatch = inst
		}
	}
	if prefixMatch != nil {
		return prefixMatch, nil
	}
	for _, inst := range instances {
		if inst.Title == identifier {
			return inst, nil
		}
	}
	return nil, errs.ErrSessionNotFound
}

// List returns every instance in profile, as used by the driver-facing
// list operation (storage already keeps this order stable).
func (o *Orchestrator) List(profile string) ([]*session.Instance, error) {
	instances, _, err := o.Store.Load(profile)
	return instances, err
}

// ResolveCurrentSession implements the driver-facing get_current_session_name
// op (§ driver-facing API): it inspects the multiplexer environment to find
// which session hosts the calling process, then matches that name back to
// an instance. GenerateName's title sanitization isn't invertible, so the
// match is done on the stable trailing id8 segment instead of the full name.
func (o *Orchestrator) ResolveCurrentSession(profile string) (*session.Instance, error) {
	name, ok := multiplex.GetCurrentSessionName()
	if !ok {
		return nil, errs.ErrSessionNotFound
	}
	instances, _, err := o.Store.Load(profile)
	if err != nil {
		return nil, err
	}
	inst := matchSessionName(name, instances)
	if inst == nil {
		return nil, errs.ErrSessionNotFound
	}
	return inst, nil
}

// matchSessionName finds which instance's multiplexer session is named
// sessionName. GenerateName's title sanitization isn't invertible, so the
// match is done on the stable trailing id8 segment rather than the full
// name.
func matchSessionName(sessionName string, instances []*session.Instance) *session.Instance {
	idx := strings.LastIndex(sessionName, "_")
	if idx < 0 {
		return nil
	}
	suffix := sessionName[idx:]
	for _, inst := range instances {
		if suffix == "_"+session.First8(inst.ID) {
			return inst
		}
	}
	return nil
}

// Rename renames the agent multiplexer session (best-effort) and/or moves
// the instance between profiles.
func (o *Orchestrator) Rename(profile string, inst *session.Instance, newTitle, newGroup, newProfile string) error {
	if newTitle != "" && newTitle != inst.Title {
		old := &multiplex.Session{Name: multiplex.GenerateName(inst.ID, inst.Title)}
		if old.Exists() {
			newName := multiplex.GenerateName(inst.ID, newTitle)
			if err := old.Rename(newName); err != nil {
				o.Log.Warn().Err(err).Str("instance_id", inst.ID).Msg("rename multiplexer session failed")
			}
		}
		inst.Title = newTitle
	}
	if newGroup != "" {
		inst.GroupPath = newGroup
	}

	if newProfile != "" && newProfile != profile {
		return o.Store.MoveInstance(inst, profile, newProfile)
	}

	instances, tree, err := o.Store.Load(profile)
	if err != nil {
		return err
	}
	for i, existing := range instances {
		if existing.ID == inst.ID {
			instances[i] = inst
		}
	}
	tree.Ensure(inst.GroupPath)
	return o.Store.Save(profile, instances, tree)
}
