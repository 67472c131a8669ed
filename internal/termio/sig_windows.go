//go:build windows

package termio

import "os"

// Windows has no SIGWINCH; resize syncing is a no-op there since pty
// passthrough is unix-only in practice (the sandbox shell runs inside a
// Linux container regardless of host).
const sigWinch os.Signal = os.Interrupt
