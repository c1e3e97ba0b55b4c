package link

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

// RxFIFODepth — глубина аппаратного FIFO приёмника по умолчанию.
const RxFIFODepth = 64

// RxPort — приёмник UART: горутина читает io.Reader в FIFO и поднимает задачу приёма
// на каждый принятый блок, как прерывание RXNE.
type RxPort struct {
	r    io.Reader
	fifo chan byte

	received atomic.Uint64
}

// NewRxPort создаёт приёмник с FIFO глубины depth.
func NewRxPort(r io.Reader, depth int) *RxPort {
	if depth <= 0 {
		depth = RxFIFODepth
	}
	return &RxPort{r: r, fifo: make(chan byte, depth)}
}

// Run читает до отмены ctx или ошибки чтения. io.EOF считается таймаутом порта.
func (p *RxPort) Run(ctx context.Context, raise func()) error {
	var buf [32]byte
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := p.r.Read(buf[:])
		for i := 0; i < n; i++ {
			select {
			case p.fifo <- buf[i]:
				p.received.Add(1)
			case <-ctx.Done():
				return nil
			}
			raise()
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if n == 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(10 * time.Millisecond):
				}
			}
		default:
			return err
		}
	}
}

// ReadByte забирает байт из FIFO без ожидания.
func (p *RxPort) ReadByte() (byte, bool) {
	select {
	case b := <-p.fifo:
		return b, true
	default:
		return 0, false
	}
}

// Received — всего принято байтов.
func (p *RxPort) Received() uint64 { return p.received.Load() }
