// Package termio provides a local PTY passthrough used when a driver needs
// to hand a raw interactive terminal to a subprocess directly -- the
// `aoe shell` escape hatch into a sandboxed container is its only caller.
// Every other interactive surface (attach) instead goes
// through a real tmux session, which already owns its own pty per pane.
package termio

import (
	"io"
	"os"
	"os/exec"
	"os/signal"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// RunInteractive starts cmd attached to a new pty, puts the calling
// process's stdin into raw mode for the duration, and copies bytes in both
// directions until cmd exits. It also keeps the pty's window size in sync
// with the controlling terminal via SIGWINCH.
func RunInteractive(cmd *exec.Cmd) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer ptmx.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sigWinch)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			syncSize(ptmx)
		}
	}()
	sigCh <- sigWinch // initial size

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err == nil {
		defer term.Restore(int(os.Stdin.Fd()), oldState)
	}

	go io.Copy(ptmx, os.Stdin)
	_, copyErr := io.Copy(os.Stdout, ptmx)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return waitErr
	}
	if copyErr != nil && copyErr != io.EOF {
		return copyErr
	}
	return nil
}

func syncSize(ptmx *os.File) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return
	}
	pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
}
