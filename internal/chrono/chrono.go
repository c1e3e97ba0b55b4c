// Package chrono — монотонный секундомер контура управления.
// SplitS возвращает время с прошлого вызова в секундах и начинает новый интервал.
package chrono

import "time"

// Chrono — секундомер: между вызовами SplitS измеряется реальное прошедшее время,
// поэтому пропущенный цикл просто даёт больший dt на следующем успешном цикле.
type Chrono interface {
	// Reset начинает новый интервал без возврата значения.
	Reset()
	// SplitS возвращает секунды с прошлого Reset/SplitS и начинает новый интервал.
	SplitS() float64
}

// Stopwatch — реализация Chrono поверх источника монотонного времени в наносекундах.
type Stopwatch struct {
	now  func() int64
	last int64
}

// NewStopwatch создаёт секундомер на монотонных часах системы (см. monotonicNs).
func NewStopwatch() *Stopwatch {
	return newStopwatch(monotonicNs)
}

func newStopwatch(now func() int64) *Stopwatch {
	return &Stopwatch{now: now, last: now()}
}

// Reset начинает новый интервал.
func (s *Stopwatch) Reset() {
	s.last = s.now()
}

// SplitS возвращает прошедшее время в секундах.
func (s *Stopwatch) SplitS() float64 {
	now := s.now()
	d := now - s.last
	s.last = now
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Second)
}

// Fixed — Chrono с постоянным шагом, для симуляции и тестов.
type Fixed struct {
	Dt     float64
	Splits int
}

// Reset ничего не делает.
func (f *Fixed) Reset() {}

// SplitS возвращает Dt.
func (f *Fixed) SplitS() float64 {
	f.Splits++
	return f.Dt
}
