// Package telemetry — кадры телеметрии в буфер канала связи и их разбор на стороне наземной станции.
//
// Форматы:
//
//	tm:ax;ay;az;gx;gy;gz;dt;yaw;pitch;roll;cmd0;cmd1;cmd2;\n   (words)
//	ct:pk;ik;dk;pitch_pk;roll_pk;yaw_pk;\n                     (снимок коэффициентов, всегда текстом)
//	0x00 + 13 float32 little-endian + 0x00                      (bytes)
package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shiwa/fc-core/internal/control"
	"github.com/shiwa/fc-core/internal/link"
)

// Варианты телеметрии
const (
	KindNone  = "none"
	KindWords = "words"
	KindBytes = "bytes"
)

// StateFields — поля кадра tm по порядку.
var StateFields = []string{"ax", "ay", "az", "gx", "gy", "gz", "dt", "yaw", "pitch", "roll", "cmd0", "cmd1", "cmd2"}

// ControlFields — поля кадра ct по порядку.
var ControlFields = []string{"pk", "ik", "dk", "pitch_pk", "roll_pk", "yaw_pk"}

// StateLen — число значений в кадре tm.
const StateLen = 13

// Telemetry — формат кадра состояния. Пустой буфер после WriteState канал не передаёт.
type Telemetry interface {
	Kind() string
	WriteState(b *link.TxBuffer, st *control.State)
}

// New выбирает вариант по тегу конфигурации.
func New(kind string) (Telemetry, error) {
	switch strings.ToLower(kind) {
	case KindNone, "", "dummy":
		return Dummy{}, nil
	case KindWords:
		return Words{}, nil
	case KindBytes:
		return Bytes{}, nil
	default:
		return nil, fmt.Errorf("telemetry: unknown kind %q", kind)
	}
}

// stateValues раскладывает снимок в порядке StateFields.
func stateValues(st *control.State) [StateLen]float32 {
	a := &st.Ahrs
	return [StateLen]float32{
		float32(a.Accel[0]), float32(a.Accel[1]), float32(a.Accel[2]),
		float32(a.Gyro[0]), float32(a.Gyro[1]), float32(a.Gyro[2]),
		float32(a.DtS),
		float32(a.YPR.Yaw), float32(a.YPR.Pitch), float32(a.YPR.Roll),
		float32(st.Cmd[0]), float32(st.Cmd[1]), float32(st.Cmd[2]),
	}
}

// Dummy — телеметрия выключена на уровне сборки конфигурации.
type Dummy struct{}

func (Dummy) Kind() string                               { return KindNone }
func (Dummy) WriteState(*link.TxBuffer, *control.State) {}

// Words — текстовые кадры.
type Words struct{}

func (Words) Kind() string { return KindWords }

// WriteState пишет кадр tm.
func (Words) WriteState(b *link.TxBuffer, st *control.State) {
	v := stateValues(st)
	writeWords(b, "tm:", v[:])
}

// Bytes — двоичные кадры.
type Bytes struct{}

func (Bytes) Kind() string { return KindBytes }

// WriteState пишет 0x00, 13 float32 LE, 0x00.
func (Bytes) WriteState(b *link.TxBuffer, st *control.State) {
	v := stateValues(st)
	_ = b.WriteByte(0)
	var w [4]byte
	for _, f := range v {
		binary.LittleEndian.PutUint32(w[:], math.Float32bits(f))
		_, _ = b.Write(w[:])
	}
	_ = b.WriteByte(0)
}

// WriteControl пишет кадр ct.
func WriteControl(b *link.TxBuffer, ctl *control.Control) {
	v := [6]float32{
		float32(ctl.Pk), float32(ctl.Ik), float32(ctl.Dk),
		float32(ctl.PitchPk), float32(ctl.RollPk), float32(ctl.YawPk),
	}
	writeWords(b, "ct:", v[:])
}

// writeWords: префикс, каждое значение кратчайшим текстом float32 с ';' после него, '\n'.
func writeWords(b *link.TxBuffer, prefix string, v []float32) {
	_, _ = b.WriteString(prefix)
	for _, f := range v {
		b.Append(func(p []byte) []byte {
			return strconv.AppendFloat(p, float64(f), 'g', -1, 32)
		})
		_ = b.WriteByte(';')
	}
	_ = b.WriteByte('\n')
}

// Send отправляет кадр состояния в канал.
func Send(ch *link.Channel, t Telemetry, st *control.State) *link.Channel {
	return ch.Send(func(b *link.TxBuffer) { t.WriteState(b, st) })
}

// SendStatus отправляет ответ на status: ct и следующий за ним кадр состояния одним буфером.
func SendStatus(ch *link.Channel, t Telemetry, ctl *control.Control, st *control.State) *link.Channel {
	return ch.Send(func(b *link.TxBuffer) {
		WriteControl(b, ctl)
		t.WriteState(b, st)
	})
}
