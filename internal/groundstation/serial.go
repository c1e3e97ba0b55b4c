package groundstation

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// OpenPort открывает порт наземной станции (8N1). Таймаут чтения позволяет Monitor проверять отмену.
func OpenPort(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serial timeout %s: %w", name, err)
	}
	return p, nil
}

// ListPorts — доступные последовательные порты.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	return ports, nil
}
