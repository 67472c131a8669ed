//go:build !windows

package main

import "syscall"

// daemonSysProcAttr detaches the spawned aoed from the CLI's session so it
// keeps running after the CLI process exits.
func daemonSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
