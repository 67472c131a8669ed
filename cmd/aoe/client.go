package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gandalfthegui/aoe/internal/proto"
)

func rootDir() string {
	if v := os.Getenv("AOE_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, "aoe: cannot determine home directory:", err)
		os.Exit(1)
	}
	return filepath.Join(home, ".aoe")
}

func socketPath() string {
	return filepath.Join(rootDir(), "aoed.sock")
}

func currentProfile() string {
	if p := os.Getenv("AOE_PROFILE"); p != "" {
		return p
	}
	return "default"
}

// send dials the control socket, auto-starting aoed if nothing answers,
// the same "start the daemon automatically" behaviour the donor's client
// provides.
func send(req proto.Request) (proto.Response, error) {
	conn, err := net.Dial("unix", socketPath())
	if err != nil {
		if err := startDaemon(); err != nil {
			return proto.Response{}, err
		}
		conn, err = dialWithRetry()
		if err != nil {
			return proto.Response{}, err
		}
	}
	defer conn.Close()

	if err := proto.WriteRequest(conn, req); err != nil {
		return proto.Response{}, err
	}
	return proto.ReadResponse(bufio.NewReader(conn))
}

func dialWithRetry() (net.Conn, error) {
	var lastErr error
	for i := 0; i < 20; i++ {
		conn, err := net.Dial("unix", socketPath())
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	return nil, fmt.Errorf("aoed did not come up: %w", lastErr)
}

func startDaemon() error {
	if err := os.MkdirAll(rootDir(), 0o755); err != nil {
		return err
	}
	bin, err := exec.LookPath("aoed")
	if err != nil {
		return fmt.Errorf("aoed binary not found on PATH: %w", err)
	}
	cmd := exec.Command(bin)
	cmd.Stdout, cmd.Stderr = nil, nil
	cmd.SysProcAttr = daemonSysProcAttr()
	return cmd.Start()
}
