package imu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// InitHost регистрирует драйверы periph (SPI, GPIO, PWM) один раз на процесс.
func InitHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostErr
}

// DataReady — источник события "новое измерение готово" (аналог линии INT датчика на EXTI).
// Run вызывает raise на каждое событие до отмены ctx.
type DataReady interface {
	Run(ctx context.Context, raise func())
}

// Ticker — data-ready по таймеру, для симуляции.
type Ticker struct {
	Interval time.Duration
}

// Run поднимает событие с периодом Interval.
func (t Ticker) Run(ctx context.Context, raise func()) {
	iv := t.Interval
	if iv <= 0 {
		iv = 10 * time.Millisecond
	}
	tk := time.NewTicker(iv)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			raise()
		}
	}
}

// EdgePin — data-ready по фронту на GPIO (линия INT датчика).
type EdgePin struct {
	pin gpio.PinIO
}

// OpenEdgePin настраивает вход с подтяжкой вниз и ожиданием переднего фронта.
func OpenEdgePin(name string) (*EdgePin, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	if err := p.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("gpio %s in: %w", name, err)
	}
	return &EdgePin{pin: p}, nil
}

// Run ждёт фронты; таймаут нужен, чтобы периодически проверять ctx.
func (e *EdgePin) Run(ctx context.Context, raise func()) {
	defer e.pin.Halt()
	for ctx.Err() == nil {
		if e.pin.WaitForEdge(100 * time.Millisecond) {
			raise()
		}
	}
}
