package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCreateArgs_Docker_NoVolumes(t *testing.T) {
	d := NewDocker("")
	args := d.BuildCreateArgs("aoe-sandbox-abc12345", "alpine:latest", ContainerConfig{
		WorkingDir: "/workspace/p",
	})
	assert.Equal(t, []string{
		"run", "-d", "--name", "aoe-sandbox-abc12345", "-w", "/workspace/p",
		"alpine:latest", "sleep", "infinity",
	}, args)
}

func TestBuildCreateArgs_Docker_ReadOnlyVolume(t *testing.T) {
	d := NewDocker("")
	args := d.BuildCreateArgs("n", "img", ContainerConfig{
		WorkingDir: "/w",
		Volumes: []VolumeMount{
			{HostPath: "/host", ContainerPath: "/container", ReadOnly: true},
		},
	})
	assert.Contains(t, args, "-v")
	idx := indexOf(args, "/host:/container:ro")
	assert.GreaterOrEqual(t, idx, 0)
}

func TestBuildCreateArgs_AppleContainer_DowngradesReadOnly(t *testing.T) {
	a := NewAppleContainer("")
	args := a.BuildCreateArgs("n", "img", ContainerConfig{
		WorkingDir: "/w",
		Volumes: []VolumeMount{
			{HostPath: "/host", ContainerPath: "/container", ReadOnly: true},
		},
	})
	assert.Contains(t, args, "/host:/container")
	assert.NotContains(t, args, "/host:/container:ro")
}

func TestBuildCreateArgs_FullConfig_Order(t *testing.T) {
	d := NewDocker("")
	cfg := ContainerConfig{
		WorkingDir: "/w",
		Volumes: []VolumeMount{
			{HostPath: "/h1", ContainerPath: "/c1", ReadOnly: false},
		},
		NamedVolumes:     []NamedVolume{{Name: "vol1", ContainerPath: "/data"}},
		AnonymousVolumes: []string{"/tmp/scratch"},
		Environment:      [][2]string{{"FOO", "bar"}},
		CPULimit:         "2",
		MemoryLimit:      "512m",
	}
	args := d.BuildCreateArgs("n", "img", cfg)
	assert.Equal(t, []string{
		"run", "-d", "--name", "n", "-w", "/w",
		"-v", "/h1:/c1",
		"-v", "vol1:/data",
		"-v", "/tmp/scratch",
		"-e", "FOO=bar",
		"--cpus", "2",
		"-m", "512m",
		"img", "sleep", "infinity",
	}, args)
}

func TestBatchRunningStates_PostFiltersExactPrefix(t *testing.T) {
	// Exercises the parsing logic directly via a fake to avoid invoking the
	// real docker binary in unit tests.
	lines := "aoe-sandbox-abc12345\trunning\naoe-sandbox-abc99999\texited\nnot-aoe-sandbox-x\trunning"
	got := parseBatchOutput(lines, "aoe-sandbox-")
	assert.True(t, got["aoe-sandbox-abc12345"])
	assert.False(t, got["aoe-sandbox-abc99999"])
	_, ok := got["not-aoe-sandbox-x"]
	assert.False(t, ok)
}

func indexOf(ss []string, v string) int {
	for i, s := range ss {
		if s == v {
			return i
		}
	}
	return -1
}
