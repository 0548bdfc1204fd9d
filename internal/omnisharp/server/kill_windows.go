package server

import (
	"os"
	"os/exec"
	"strconv"
)

// killProcess kills p and its children.
func killProcess(p *os.Process) error {
	return exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(p.Pid)).Run()
}
