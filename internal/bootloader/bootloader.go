// Package bootloader — перезагрузка в загрузчик через флаг в резервном регистре и сброс системы.
//
// Резервный регистр — файл из 4 байт (little-endian), переживающий перезапуск процесса.
// Сброс системы — отмена цикла управления и повторный exec текущего бинарника.
package bootloader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// Request — значение флага "войти в загрузчик".
const Request uint32 = 93

// ErrNoCommand — команда загрузчика не настроена.
var ErrNoCommand = errors.New("bootloader: command not configured")

// Register — резервный регистр.
type Register interface {
	Read() (uint32, error)
	Write(v uint32) error
}

// FileRegister — резервный регистр в файле. Отсутствующий файл читается как 0.
type FileRegister struct {
	Path string
}

// Read читает значение.
func (r FileRegister) Read() (uint32, error) {
	b, err := os.ReadFile(r.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read backup register: %w", err)
	}
	if len(b) < 4 {
		return 0, nil
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Write записывает значение и сбрасывает его на носитель до возврата.
func (r FileRegister) Write(v uint32) error {
	f, err := os.OpenFile(r.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open backup register: %w", err)
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	if _, err := f.Write(b[:]); err != nil {
		_ = f.Close()
		return fmt.Errorf("write backup register: %w", err)
	}
	if err := syncFile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync backup register: %w", err)
	}
	return f.Close()
}

// Host — загрузчик на Linux хосте.
type Host struct {
	reg     Register
	command []string
	cancel  func()

	reset atomic.Bool
	exec  func(argv []string) error
}

// NewHost создаёт загрузчик. command — программа загрузчика с аргументами (может быть пустой),
// cancel останавливает цикл управления при сбросе.
func NewHost(reg Register, command []string, cancel func()) *Host {
	return &Host{reg: reg, command: command, cancel: cancel, exec: execve}
}

// CheckRequest проверяет флаг при старте. Если флаг стоит, он снимается и выполняется
// переход в загрузчик; при успехе exec не возвращается.
// Возвращает false, если запроса нет.
func (h *Host) CheckRequest() (bool, error) {
	v, err := h.reg.Read()
	if err != nil {
		return false, err
	}
	if v != Request {
		return false, nil
	}
	if err := h.reg.Write(0); err != nil {
		return true, err
	}
	if len(h.command) == 0 {
		return true, ErrNoCommand
	}
	if err := h.exec(h.command); err != nil {
		return true, fmt.Errorf("exec bootloader %s: %w", h.command[0], err)
	}
	return true, nil
}

// ToBootloader ставит флаг и сбрасывает систему.
func (h *Host) ToBootloader() error {
	if err := h.reg.Write(Request); err != nil {
		return err
	}
	h.SystemReset()
	return nil
}

// SystemReset останавливает цикл управления; перезапуск делает main через Restart.
func (h *Host) SystemReset() {
	h.reset.Store(true)
	if h.cancel != nil {
		h.cancel()
	}
}

// ResetRequested — был ли запрошен сброс.
func (h *Host) ResetRequested() bool { return h.reset.Load() }

// Restart заменяет процесс новым экземпляром текущего бинарника с теми же аргументами.
func Restart() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	argv := append([]string{exe}, os.Args[1:]...)
	return execve(argv)
}
