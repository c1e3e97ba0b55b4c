package link

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// Port — последовательный порт канала связи (UART).
type Port struct {
	port *serial.Port
}

// OpenSerial открывает порт. Таймаут чтения нужен, чтобы приём мог проверять отмену.
func OpenSerial(device string, baud int) (*Port, error) {
	c := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	}
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", device, err)
	}
	return &Port{port: p}, nil
}

func (p *Port) Read(b []byte) (int, error) { return p.port.Read(b) }

func (p *Port) Write(b []byte) (int, error) { return p.port.Write(b) }

// Close закрывает порт
func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}
