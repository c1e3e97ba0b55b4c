// Package sched — диспетчер задач с фиксированными приоритетами и ресурсами с потолком приоритета.
//
// Все задачи выполняются до конца в одной горутине Run. Аппаратные источники (датчик, UART)
// работают в своих горутинах и только поднимают задачи через Raise: флаг ожидания плюс сигнал
// пробуждения, как контроллер прерываний. Точки диспетчеризации: после каждой задачи, в Pend,
// при захвате и освобождении ресурса. Задача с большим приоритетом всегда выполняется раньше,
// чем продолжится меньшая; внутри приоритета задачи идут в порядке поднятия.
package sched

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Priority — приоритет задачи; больше — важнее. 0 — idle.
type Priority uint8

// Приоритеты контура управления
const (
	PrioIdle Priority = 0
	PrioRx   Priority = 2
	PrioIMU  Priority = 3
)

// Task — задача с фиксированным приоритетом.
type Task struct {
	name string
	prio Priority
	fn   func(*Context)
	ctx  Context

	pending atomic.Bool
	seq     atomic.Uint64

	runs      atomic.Uint64
	coalesced atomic.Uint64
}

// Name — имя задачи.
func (t *Task) Name() string { return t.name }

// Priority — приоритет задачи.
func (t *Task) Priority() Priority { return t.prio }

// Stats — сколько раз задача выполнена и сколько поднятий слилось с уже ожидающим.
func (t *Task) Stats() (runs, coalesced uint64) {
	return t.runs.Load(), t.coalesced.Load()
}

// Context передаётся выполняемой задаче.
type Context struct {
	s    *Scheduler
	task *Task
}

// Task — текущая задача.
func (c *Context) Task() *Task { return c.task }

// Pend поднимает задачу t и сразу выполняет её, если её приоритет выше текущего.
func (c *Context) Pend(t *Task) {
	c.s.Raise(t)
	c.s.dispatch(c.s.cur)
}

// Scheduler — диспетчер.
type Scheduler struct {
	tasks []*Task
	idle  *Task
	cur   Priority

	seq  atomic.Uint64
	wake chan struct{}
}

// New создаёт диспетчер.
func New() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

// Task регистрирует задачу. Приоритет должен быть больше PrioIdle. Регистрировать до Run.
func (s *Scheduler) Task(name string, prio Priority, fn func(*Context)) *Task {
	if prio == PrioIdle {
		panic(fmt.Sprintf("sched: task %s: priority 0 is reserved for idle", name))
	}
	t := &Task{name: name, prio: prio, fn: fn}
	t.ctx = Context{s: s, task: t}
	s.tasks = append(s.tasks, t)
	return t
}

// Idle регистрирует idle задачу: вызывается из Run, когда ничего не ожидает выполнения.
func (s *Scheduler) Idle(name string, fn func(*Context)) *Task {
	t := &Task{name: name, prio: PrioIdle, fn: fn}
	t.ctx = Context{s: s, task: t}
	s.idle = t
	return t
}

// Raise поднимает задачу. Безопасно вызывать из любой горутины; повторное поднятие
// ещё не выполненной задачи сливается с первым.
func (s *Scheduler) Raise(t *Task) {
	if t.pending.Load() {
		t.coalesced.Add(1)
		return
	}
	t.seq.Store(s.seq.Add(1))
	if !t.pending.CompareAndSwap(false, true) {
		t.coalesced.Add(1)
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run выполняет задачи до отмены ctx. Текущая задача при отмене дорабатывает до конца.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.dispatch(PrioIdle)
		if ctx.Err() != nil {
			return nil
		}
		if s.idle != nil {
			s.run(s.idle)
			if s.anyPending(PrioIdle) {
				continue
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}
	}
}

// dispatch выполняет ожидающие задачи с приоритетом выше threshold.
func (s *Scheduler) dispatch(threshold Priority) {
	for {
		t := s.next(threshold)
		if t == nil {
			return
		}
		t.pending.Store(false)
		s.run(t)
	}
}

func (s *Scheduler) run(t *Task) {
	prev := s.cur
	s.cur = t.prio
	t.runs.Add(1)
	t.fn(&t.ctx)
	s.cur = prev
}

func (s *Scheduler) next(threshold Priority) *Task {
	var best *Task
	var bestSeq uint64
	for _, t := range s.tasks {
		if t.prio <= threshold || !t.pending.Load() {
			continue
		}
		seq := t.seq.Load()
		if best == nil || t.prio > best.prio || (t.prio == best.prio && seq < bestSeq) {
			best, bestSeq = t, seq
		}
	}
	return best
}

func (s *Scheduler) anyPending(threshold Priority) bool {
	return s.next(threshold) != nil
}
