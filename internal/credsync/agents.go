package credsync

// Agents is the static table of declarative per-agent credential-sync
// records, keyed by tool name. Tool-specific behaviour lives here as data,
// not as a class hierarchy, per §9's polymorphism design note.
var Agents = map[string]AgentRecord{
	"claude": {
		HostRel:         ".claude",
		ContainerSuffix: ".claude",
		SkipEntries:     []string{"ide", "shell-snapshots"},
		CopyDirs:        []string{"plugins"},
		SeedFiles: []SeedFile{
			{Name: "settings.json", Content: []byte("{}\n")},
		},
		KeychainCredential: &KeychainCredential{
			Service:  "Claude Code-credentials",
			DestFile: ".credentials.json",
		},
		PreserveFiles: []string{"auth.json"},
	},
	"opencode": {
		HostRel:         ".opencode",
		ContainerSuffix: ".opencode",
		SeedFiles: []SeedFile{
			{Name: "config.json", Content: []byte("{}\n")},
		},
	},
	"codex": {
		HostRel:         ".codex",
		ContainerSuffix: ".codex",
	},
	"gemini": {
		HostRel:         ".gemini",
		ContainerSuffix: ".gemini",
	},
	"vibe": {
		HostRel:         ".vibe",
		ContainerSuffix: ".vibe",
	},
}
