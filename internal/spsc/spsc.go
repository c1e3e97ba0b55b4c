// Package spsc — очередь байтов фиксированной ёмкости с одним производителем и одним потребителем.
// Производитель — обработчик приёма UART, потребитель — idle задача.
package spsc

import (
	"errors"
	"sync/atomic"
)

// Capacity — ёмкость очереди в байтах.
const Capacity = 16

var (
	// ErrFull — очередь заполнена, байт не записан.
	ErrFull = errors.New("spsc: no space")
	// ErrSplit — очередь уже разделена на концы.
	ErrSplit = errors.New("spsc: already split")
)

// Queue — кольцевой буфер. head и tail только растут; индекс в buf — по модулю Capacity.
type Queue struct {
	buf   [Capacity]byte
	head  atomic.Uint32 // пишет только потребитель
	tail  atomic.Uint32 // пишет только производитель
	split atomic.Bool
}

// Producer — единственный пишущий конец.
type Producer struct{ q *Queue }

// Consumer — единственный читающий конец.
type Consumer struct{ q *Queue }

// Split отдаёт концы очереди. Повторный вызов возвращает ErrSplit.
func (q *Queue) Split() (*Producer, *Consumer, error) {
	if !q.split.CompareAndSwap(false, true) {
		return nil, nil, ErrSplit
	}
	return &Producer{q: q}, &Consumer{q: q}, nil
}

// Enqueue кладёт байт. При полной очереди содержимое не меняется.
func (p *Producer) Enqueue(b byte) error {
	q := p.q
	tail := q.tail.Load()
	if tail-q.head.Load() >= Capacity {
		return ErrFull
	}
	q.buf[tail%Capacity] = b
	q.tail.Store(tail + 1)
	return nil
}

// Ready — есть ли место.
func (p *Producer) Ready() bool {
	return p.q.tail.Load()-p.q.head.Load() < Capacity
}

// Dequeue забирает самый старый байт; ok == false, если очередь пуста.
func (c *Consumer) Dequeue() (byte, bool) {
	q := c.q
	head := q.head.Load()
	if head == q.tail.Load() {
		return 0, false
	}
	b := q.buf[head%Capacity]
	q.head.Store(head + 1)
	return b, true
}
