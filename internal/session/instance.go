// Package session defines the Instance and GroupTree data model persisted
// by internal/storage and mutated by internal/orchestrator.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the observed lifecycle state of an instance, layering
// Starting/Stopped/Error/Deleting on top of the three values the status
// detector itself can produce.
type Status string

const (
	StatusIdle     Status = "Idle"
	StatusRunning  Status = "Running"
	StatusWaiting  Status = "Waiting"
	StatusStarting Status = "Starting"
	StatusStopped  Status = "Stopped"
	StatusError    Status = "Error"
	StatusDeleting Status = "Deleting"
)

// WorktreeInfo describes a git worktree bound to an instance.
type WorktreeInfo struct {
	Branch        string    `yaml:"branch" json:"branch"`
	MainRepoPath  string    `yaml:"main_repo_path" json:"main_repo_path"`
	ManagedByAoe  bool      `yaml:"managed_by_aoe" json:"managed_by_aoe"`
	CreatedAt     time.Time `yaml:"created_at" json:"created_at"`
	CleanupOnDelete bool    `yaml:"cleanup_on_delete" json:"cleanup_on_delete"`
}

// SandboxInfo describes an isolation container bound to an instance.
type SandboxInfo struct {
	Enabled           bool       `yaml:"enabled" json:"enabled"`
	Image             string     `yaml:"image" json:"image"`
	ContainerName     string     `yaml:"container_name" json:"container_name"`
	ContainerID       string     `yaml:"container_id,omitempty" json:"container_id,omitempty"`
	CreatedAt         *time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	ExtraEnvKeys      []string   `yaml:"extra_env_keys,omitempty" json:"extra_env_keys,omitempty"`
	ExtraEnvValues    []string   `yaml:"extra_env_values,omitempty" json:"extra_env_values,omitempty"`
	CustomInstruction string     `yaml:"custom_instruction,omitempty" json:"custom_instruction,omitempty"`
}

// TerminalInfo tracks whether a paired host-shell multiplexer session has
// been spawned for this instance (distinct from the agent session).
type TerminalInfo struct {
	Created   bool       `yaml:"created" json:"created"`
	CreatedAt *time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
}

// Instance is one orchestrated session.
type Instance struct {
	ID        string `yaml:"id" json:"id"`
	Title     string `yaml:"title" json:"title"`
	GroupPath string `yaml:"group_path" json:"group_path"`

	Tool      string `yaml:"tool" json:"tool"`
	Command   string `yaml:"command,omitempty" json:"command,omitempty"`
	YoloMode  bool   `yaml:"yolo_mode" json:"yolo_mode"`

	ProjectPath string `yaml:"project_path" json:"project_path"`

	Worktree *WorktreeInfo `yaml:"worktree,omitempty" json:"worktree,omitempty"`
	Sandbox  *SandboxInfo  `yaml:"sandbox,omitempty" json:"sandbox,omitempty"`
	Terminal *TerminalInfo `yaml:"terminal,omitempty" json:"terminal,omitempty"`

	Status Status `yaml:"status" json:"status"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`

	// Runtime-only fields, never persisted.
	LastError      string    `yaml:"-" json:"-"`
	LastErrorCheck time.Time `yaml:"-" json:"-"`
	LastStartTime  time.Time `yaml:"-" json:"-"`

	lowerTitle string
	lowerPath  string
	lowerGroup string
}

// NewID allocates a fresh opaque 16-hex-character id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// First8 returns the first 8 hex characters of id, used to derive
// container and multiplexer names deterministically.
func First8(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ContainerName returns the deterministic container name for id.
func ContainerName(id string) string {
	return "aoe-sandbox-" + First8(id)
}

// RefreshSearchCache recomputes the lowercased fields used by the search
// filter in flatten_tree.
func (i *Instance) RefreshSearchCache() {
	i.lowerTitle = strings.ToLower(i.Title)
	i.lowerPath = strings.ToLower(i.ProjectPath)
	i.lowerGroup = strings.ToLower(i.GroupPath)
}

// MatchesSearch reports whether the lowercased query appears in the
// title, path, or group name.
func (i *Instance) MatchesSearch(queryLower string) bool {
	if queryLower == "" {
		return true
	}
	if i.lowerTitle == "" && i.lowerPath == "" && i.lowerGroup == "" {
		i.RefreshSearchCache()
	}
	return strings.Contains(i.lowerTitle, queryLower) ||
		strings.Contains(i.lowerPath, queryLower) ||
		strings.Contains(i.lowerGroup, queryLower)
}

// IsTerminal reports whether status is one from which no further
// transition happens without an explicit user action.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusStopped, StatusError:
		return true
	default:
		return false
	}
}
