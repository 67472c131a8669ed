//go:build !windows

package termio

import (
	"os"
	"syscall"
)

const sigWinch os.Signal = syscall.SIGWINCH
