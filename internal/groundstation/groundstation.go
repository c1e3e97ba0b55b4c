// Package groundstation — наземная станция: читает кадры телеметрии с канала связи,
// печатает их, раздаёт по websocket и пишет в поток Redis; отправляет команды в канал.
package groundstation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shiwa/fc-core/internal/logger"
	"github.com/shiwa/fc-core/internal/telemetry"
)

// Record — принятый кадр с меткой сеанса и времени приёма.
type Record struct {
	Session string          `json:"session"`
	Time    time.Time       `json:"time"`
	Frame   telemetry.Frame `json:"frame"`
}

// Sink — получатель кадров.
type Sink interface {
	Record(ctx context.Context, r Record) error
}

// Monitor — сеанс наземной станции поверх порта.
type Monitor struct {
	port    io.ReadWriter
	out     io.Writer
	sinks   []Sink
	session string
	log     *logger.Logger

	now func() time.Time
}

// NewMonitor создаёт сеанс; out — куда печатать кадры (nil — не печатать).
func NewMonitor(port io.ReadWriter, out io.Writer, log *logger.Logger, sinks ...Sink) *Monitor {
	if log == nil {
		log = logger.Default()
	}
	return &Monitor{
		port:    port,
		out:     out,
		sinks:   sinks,
		session: uuid.NewString(),
		log:     log,
		now:     time.Now,
	}
}

// Session — идентификатор сеанса.
func (m *Monitor) Session() string { return m.session }

// Run читает кадры до ошибки порта или отмены ctx. Нераспознанные строки печатаются как есть.
// Пустое чтение (таймаут порта) не разрывает кадр.
func (m *Monitor) Run(ctx context.Context) error {
	var pending []byte
	chunk := make([]byte, 256)
	for ctx.Err() == nil {
		n, err := m.port.Read(chunk)
		pending = append(pending, chunk[:n]...)
		pending = m.drain(ctx, pending)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrNoProgress) {
			return err
		}
		if n == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
	return nil
}

// maxLine — длина строки без перевода строки, после которой она выводится как есть.
const maxLine = 1024

type cutKind int

const (
	cutNone cutKind = iota // данных пока не хватает
	cutText
	cutBinary
	cutSkip // байт вне кадра
)

// cut выделяет из начала buf один кадр и возвращает его длину.
// Двоичный кадр начинается и заканчивается байтом 0x00, текстовый заканчивается '\n' или 0x00.
func cut(buf []byte) (int, cutKind) {
	if len(buf) == 0 {
		return 0, cutNone
	}
	if buf[0] == 0 {
		if len(buf) < telemetry.BinaryFrameLen {
			return 0, cutNone
		}
		if buf[telemetry.BinaryFrameLen-1] == 0 {
			return telemetry.BinaryFrameLen, cutBinary
		}
		return 1, cutSkip
	}
	for i, b := range buf {
		switch b {
		case '\n':
			return i + 1, cutText
		case 0:
			return i, cutText
		}
	}
	if len(buf) >= maxLine {
		return len(buf), cutText
	}
	return 0, cutNone
}

// drain обрабатывает все полные кадры и возвращает остаток.
func (m *Monitor) drain(ctx context.Context, buf []byte) []byte {
	for {
		n, kind := cut(buf)
		switch kind {
		case cutNone:
			return buf
		case cutText:
			m.handle(ctx, buf[:n])
		case cutBinary:
			f, err := telemetry.ParseBinary(buf[:n])
			if err != nil {
				m.log.Debug("bad binary frame: %v", err)
			} else {
				m.record(ctx, f)
			}
		}
		buf = buf[n:]
	}
}

func (m *Monitor) handle(ctx context.Context, line []byte) {
	f, err := telemetry.Parse(line)
	if err != nil {
		if !errors.Is(err, telemetry.ErrUnknownFrame) {
			m.log.Debug("bad frame %q: %v", line, err)
			return
		}
		if m.out != nil {
			fmt.Fprintf(m.out, "%s\n", strings.TrimRight(string(line), "\r\n"))
		}
		return
	}
	m.record(ctx, f)
}

func (m *Monitor) record(ctx context.Context, f telemetry.Frame) {
	rec := Record{Session: m.session, Time: m.now(), Frame: f}
	if m.out != nil {
		fmt.Fprintln(m.out, Format(f))
	}
	for _, s := range m.sinks {
		if err := s.Record(ctx, rec); err != nil {
			m.log.Error("sink: %v", err)
		}
	}
}

// Format печатает кадр как name=value через пробел.
func Format(f telemetry.Frame) string {
	names := telemetryNames(f.Kind)
	var b strings.Builder
	b.WriteString(f.Kind)
	for i, v := range f.Values {
		if i < len(names) {
			fmt.Fprintf(&b, " %s=%.4g", names[i], v)
		}
	}
	return b.String()
}

// Send отправляет строку команды, добавляя перевод строки.
func (m *Monitor) Send(cmd string) error {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return nil
	}
	_, err := io.WriteString(m.port, cmd+"\n")
	return err
}

// ForwardCommands отправляет строки из r как команды до EOF или отмены ctx.
func (m *Monitor) ForwardCommands(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := m.Send(sc.Text()); err != nil {
			return fmt.Errorf("send command: %w", err)
		}
	}
	return sc.Err()
}

func telemetryNames(kind string) []string {
	if kind == "ct" {
		return telemetry.ControlFields
	}
	return telemetry.StateFields
}
