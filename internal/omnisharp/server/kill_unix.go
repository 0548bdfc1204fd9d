//go:build !windows

package server

import (
	"os"
	"syscall"
)

func killProcess(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
