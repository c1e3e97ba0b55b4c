// Package command — построчный разбор текстовых команд с канала связи.
package command

import (
	"bytes"
	"strconv"

	"github.com/shiwa/fc-core/internal/control"
)

// BufSize — размер буфера строки.
const BufSize = 512

// Request — разовое действие, запрошенное командой.
type Request int

const (
	RequestNone Request = iota
	RequestStatus
	RequestBoot
	RequestReset
)

func (r Request) String() string {
	switch r {
	case RequestStatus:
		return "status"
	case RequestBoot:
		return "boot"
	case RequestReset:
		return "reset"
	default:
		return "none"
	}
}

// Cmd — инкрементальный токенизатор строк. Буфер кольцевой: при переполнении позиция
// переходит в начало без ошибки и строка перезаписывается.
type Cmd struct {
	buf [BufSize]byte
	pos int
}

// Push добавляет байт. На CR или LF возвращает накопленную строку (если она не пуста) и сбрасывает позицию.
// Срез действителен до следующего вызова Push.
func (c *Cmd) Push(b byte) ([]byte, bool) {
	if b == '\r' || b == '\n' {
		if c.pos == 0 {
			return nil, false
		}
		n := c.pos
		c.pos = 0
		return c.buf[:n], true
	}
	c.buf[c.pos] = b
	c.pos = (c.pos + 1) & (BufSize - 1)
	return nil, false
}

// Feed добавляет байт и, если строка завершена, применяет её к ctl.
func (c *Cmd) Feed(b byte, ctl *control.Control) Request {
	line, ok := c.Push(b)
	if !ok {
		return RequestNone
	}
	return Apply(line, ctl)
}

// rule — строка грамматики: exact == true требует полного совпадения, иначе после prefix идёт целое.
type rule struct {
	prefix string
	exact  bool
	set    func(ctl *control.Control, v float64)
	req    Request
}

// grammar проверяется сверху вниз, срабатывает первое совпадение.
var grammar = []rule{
	{prefix: "tmon", exact: true, set: func(c *control.Control, _ float64) { c.Telemetry = true }},
	{prefix: "tmoff", exact: true, set: func(c *control.Control, _ float64) { c.Telemetry = false }},
	{prefix: "pk=", set: func(c *control.Control, v float64) { c.Pk = v }},
	{prefix: "ik=", set: func(c *control.Control, v float64) { c.Ik = v }},
	{prefix: "dk=", set: func(c *control.Control, v float64) { c.Dk = v }},
	{prefix: "pipk=", set: func(c *control.Control, v float64) { c.PitchPk = v }},
	{prefix: "rpk=", set: func(c *control.Control, v float64) { c.RollPk = v }},
	{prefix: "ypk=", set: func(c *control.Control, v float64) { c.YawPk = v }},
	{prefix: "tthurst=", set: func(c *control.Control, v float64) { c.Thrust = v }},
	{prefix: "pt=", set: func(c *control.Control, v float64) { c.Target.Pitch = v }},
	{prefix: "status", exact: true, req: RequestStatus},
	{prefix: "boot", exact: true, req: RequestBoot},
	{prefix: "reset", exact: true, req: RequestReset},
}

// Apply разбирает одну завершённую строку. Неизвестная строка или некорректное число
// ничего не меняют.
func Apply(line []byte, ctl *control.Control) Request {
	for _, r := range grammar {
		p := []byte(r.prefix)
		if r.exact {
			if !bytes.Equal(line, p) {
				continue
			}
			if r.set != nil {
				r.set(ctl, 0)
			}
			return r.req
		}
		if !bytes.HasPrefix(line, p) {
			continue
		}
		v, err := strconv.Atoi(string(line[len(p):]))
		if err != nil {
			return RequestNone
		}
		r.set(ctl, float64(v))
		return RequestNone
	}
	return RequestNone
}
