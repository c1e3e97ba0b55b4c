package telemetry

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Frame — разобранный кадр.
type Frame struct {
	Kind   string    `json:"kind"` // tm или ct
	Values []float64 `json:"values"`
}

// Field возвращает значение по имени поля; ok == false, если поля нет.
func (f Frame) Field(name string) (float64, bool) {
	names := StateFields
	if f.Kind == "ct" {
		names = ControlFields
	}
	for i, n := range names {
		if n == name && i < len(f.Values) {
			return f.Values[i], true
		}
	}
	return 0, false
}

// ErrUnknownFrame — строка не является кадром tm или ct.
var ErrUnknownFrame = errors.New("telemetry: unknown frame")

// BinaryFrameLen — длина двоичного кадра.
const BinaryFrameLen = 2 + 4*StateLen

// Parse разбирает текстовую строку кадра (с '\n' или без).
func Parse(line []byte) (Frame, error) {
	line = bytes.TrimRight(line, "\r\n")
	var kind string
	var want int
	switch {
	case bytes.HasPrefix(line, []byte("tm:")):
		kind, want = "tm", StateLen
	case bytes.HasPrefix(line, []byte("ct:")):
		kind, want = "ct", len(ControlFields)
	default:
		return Frame{}, ErrUnknownFrame
	}
	body := bytes.TrimSuffix(line[3:], []byte(";"))
	parts := bytes.Split(body, []byte(";"))
	if len(parts) != want {
		return Frame{}, fmt.Errorf("telemetry: %s frame has %d fields, want %d", kind, len(parts), want)
	}
	f := Frame{Kind: kind, Values: make([]float64, want)}
	for i, p := range parts {
		v, err := strconv.ParseFloat(string(p), 32)
		if err != nil {
			return Frame{}, fmt.Errorf("telemetry: field %d: %w", i, err)
		}
		f.Values[i] = v
	}
	return f, nil
}

// ParseBinary разбирает двоичный кадр состояния.
func ParseBinary(b []byte) (Frame, error) {
	if len(b) != BinaryFrameLen || b[0] != 0 || b[len(b)-1] != 0 {
		return Frame{}, fmt.Errorf("telemetry: bad binary frame of %d bytes", len(b))
	}
	f := Frame{Kind: "tm", Values: make([]float64, StateLen)}
	for i := 0; i < StateLen; i++ {
		bits := binary.LittleEndian.Uint32(b[1+4*i:])
		f.Values[i] = float64(math.Float32frombits(bits))
	}
	return f, nil
}
