package sched

import "fmt"

// Resource — значение, разделяемое задачами разных приоритетов.
// Потолок — наибольший приоритет среди объявленных пользователей. Lock поднимает текущий
// приоритет до потолка на время fn: задачи с приоритетом не выше потолка откладываются
// до освобождения и выполняются сразу после него. Lock никогда не блокируется.
type Resource[T any] struct {
	name    string
	value   T
	users   []*Task
	ceiling Priority
	locked  bool
}

// NewResource создаёт ресурс с объявленными пользователями.
func NewResource[T any](name string, value T, users ...*Task) *Resource[T] {
	r := &Resource[T]{name: name, value: value, users: users}
	for _, u := range users {
		if u.prio > r.ceiling {
			r.ceiling = u.prio
		}
	}
	return r
}

// Ceiling — потолок приоритета.
func (r *Resource[T]) Ceiling() Priority { return r.ceiling }

// Lock выполняет fn с доступом к значению. Доступ из необъявленной задачи или вложенный
// захват того же ресурса — ошибка программы (panic).
func (r *Resource[T]) Lock(c *Context, fn func(v *T)) {
	if !r.declared(c.task) {
		panic(fmt.Sprintf("sched: task %s is not a user of resource %s", c.task.name, r.name))
	}
	if r.locked {
		panic(fmt.Sprintf("sched: resource %s locked twice", r.name))
	}
	s := c.s
	s.dispatch(s.cur)

	prev := s.cur
	if r.ceiling > s.cur {
		s.cur = r.ceiling
	}
	r.locked = true
	fn(&r.value)
	r.locked = false
	s.cur = prev

	s.dispatch(s.cur)
}

func (r *Resource[T]) declared(t *Task) bool {
	for _, u := range r.users {
		if u == t {
			return true
		}
	}
	return false
}

// Value — копия значения вне задач (до Run или после его завершения).
func (r *Resource[T]) Value() T { return r.value }
