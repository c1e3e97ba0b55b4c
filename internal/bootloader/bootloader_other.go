//go:build !linux

package bootloader

import (
	"os"
	"os/exec"
)

func syncFile(f *os.File) error {
	return f.Sync()
}

// execve на не-Linux запускает программу дочерним процессом и завершает текущий.
func execve(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
