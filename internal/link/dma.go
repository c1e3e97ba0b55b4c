package link

import (
	"io"
	"sync/atomic"
)

// DMA — эмуляция DMA движка поверх io.Writer: одна фоновая горутина пишет буфер
// и выставляет флаг завершения. Одновременно идёт не более одной передачи.
type DMA struct {
	w    io.Writer
	req  chan []byte
	done atomic.Bool
	err  error // пишет горутина до done.Store(true)

	bytes atomic.Uint64
}

// NewDMA запускает движок. Close останавливает его.
func NewDMA(w io.Writer) *DMA {
	d := &DMA{w: w, req: make(chan []byte, 1)}
	d.done.Store(true)
	go d.run()
	return d
}

func (d *DMA) run() {
	for p := range d.req {
		n, err := d.w.Write(p)
		d.bytes.Add(uint64(n))
		d.err = err
		d.done.Store(true)
	}
}

// Start запускает передачу. Вызывать только после Done предыдущей.
func (d *DMA) Start(p []byte) Transfer {
	d.err = nil
	d.done.Store(false)
	d.req <- p
	return d
}

// Done — завершена ли передача.
func (d *DMA) Done() bool { return d.done.Load() }

// Err — ошибка завершённой передачи.
func (d *DMA) Err() error {
	if !d.done.Load() {
		return nil
	}
	return d.err
}

// Bytes — всего передано байтов.
func (d *DMA) Bytes() uint64 { return d.bytes.Load() }

// Close останавливает горутину движка.
func (d *DMA) Close() error {
	close(d.req)
	return nil
}
