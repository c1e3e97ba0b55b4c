// Package link — передача и приём по последовательному каналу связи.
//
// Channel — автомат из двух состояний над единственным буфером передачи:
// Ready (буфер и передатчик свободны) и MaybeBusy (идёт передача).
// Send никогда не блокируется: если передача ещё идёт, новый кадр отбрасывается.
package link

// Transfer — запущенная передача. Done опрашивается без ожидания.
type Transfer interface {
	Done() bool
	// Err — результат завершённой передачи.
	Err() error
}

// Transmitter — движок передачи (DMA + UART). Start не копирует p: буфер занят до Done.
type Transmitter interface {
	Start(p []byte) Transfer
}

type chanState int

const (
	stateReady chanState = iota
	stateMaybeBusy
)

// Channel — канал передачи. Держит ровно одна задача, передача владения через Slot.
type Channel struct {
	state    chanState
	buf      TxBuffer
	tx       Transmitter
	transfer Transfer

	sent    uint64
	dropped uint64
	failed  uint64
	lastErr error
}

// NewChannel создаёт канал в состоянии Ready.
func NewChannel(tx Transmitter) *Channel {
	return &Channel{tx: tx}
}

// Send заполняет буфер через fill и запускает передачу.
// Если предыдущая передача завершена, буфер освобождается и fill вызывается повторно,
// так что кадр не теряется на смене состояния. Если передача ещё идёт, кадр отбрасывается.
// Пустой после fill буфер не передаётся, канал остаётся Ready.
func (c *Channel) Send(fill func(*TxBuffer)) *Channel {
	switch c.state {
	case stateReady:
		fill(&c.buf)
		if c.buf.Len() == 0 {
			return c
		}
		c.transfer = c.tx.Start(c.buf.Bytes())
		c.state = stateMaybeBusy
		c.sent++
	case stateMaybeBusy:
		if !c.transfer.Done() {
			c.dropped++
			return c
		}
		c.reclaim()
		return c.Send(fill)
	}
	return c
}

// Poll освобождает буфер, если передача завершена. Возвращает true в состоянии Ready.
func (c *Channel) Poll() bool {
	if c.state == stateMaybeBusy && c.transfer.Done() {
		c.reclaim()
	}
	return c.state == stateReady
}

func (c *Channel) reclaim() {
	if err := c.transfer.Err(); err != nil {
		c.failed++
		c.lastErr = err
	}
	c.transfer = nil
	c.buf.Clear()
	c.state = stateReady
}

// Ready — свободен ли канал (без опроса передачи).
func (c *Channel) Ready() bool { return c.state == stateReady }

// Stats — счётчики: запущено, отброшено, завершилось с ошибкой.
func (c *Channel) Stats() (sent, dropped, failed uint64) {
	return c.sent, c.dropped, c.failed
}

// LastErr — последняя ошибка передачи.
func (c *Channel) LastErr() error { return c.lastErr }

// Slot — держатель канала для передачи владения между задачами.
// Повторный Take до Replace возвращает nil. Сам Slot защищается ресурсом планировщика.
type Slot struct {
	ch *Channel
}

// NewSlot кладёт канал в слот.
func NewSlot(ch *Channel) *Slot { return &Slot{ch: ch} }

// Take забирает канал.
func (s *Slot) Take() *Channel {
	ch := s.ch
	s.ch = nil
	return ch
}

// Replace возвращает канал в слот.
func (s *Slot) Replace(ch *Channel) { s.ch = ch }
