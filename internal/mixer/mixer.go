// Package mixer — перевод (x, y, z, тяга) в скважности моторов по матрице геометрии рамы.
package mixer

import (
	"fmt"
	"strings"
)

// MotorCtrl — управление моторами. Реализации: *Mixer и NopMotors.
type MotorCtrl interface {
	SetDuty(x, y, z, thrust float64) error
}

// Pin — один ШИМ выход мотора.
type Pin interface {
	SetDuty(duty uint32) error
}

// Row — вклад x, y, z и тяги в один мотор.
type Row [4]float64

// Quad — рама "X" на 4 мотора.
var Quad = []Row{
	{1, -1, -1, 1},  // задний правый
	{1, 1, 1, 1},    // передний правый
	{-1, -1, -1, 1}, // задний левый
	{-1, 1, 1, 1},   // передний левый
}

// Hex — квадрокоптер плюс два боковых мотора.
var Hex = []Row{
	{0.567, -0.815, -1, 1}, // задний правый
	{0.567, 0.815, -1, 1},  // передний правый
	{-0.567, -0.815, 1, 1}, // задний левый
	{-0.567, 0.815, 1, 1},  // передний левый
	{-1, 0, -1, 1},         // левый
	{1, 0, 1, 1},           // правый
}

// Geometry возвращает матрицу по имени рамы: quad или hex.
func Geometry(name string) ([]Row, error) {
	switch strings.ToLower(name) {
	case "quad", "":
		return Quad, nil
	case "hex":
		return Hex, nil
	default:
		return nil, fmt.Errorf("mixer: unknown airframe %q", name)
	}
}

// Mixer — MotorCtrl поверх набора ШИМ выходов.
type Mixer struct {
	rows    []Row
	pins    []Pin
	maxDuty float64
}

// New создаёт микшер; число выходов должно совпадать с числом строк матрицы.
// maxDuty читается у ШИМ один раз при настройке.
func New(rows []Row, pins []Pin, maxDuty uint32) (*Mixer, error) {
	if len(rows) != len(pins) {
		return nil, fmt.Errorf("mixer: %d motors in geometry, %d pins", len(rows), len(pins))
	}
	return &Mixer{rows: rows, pins: pins, maxDuty: float64(maxDuty)}, nil
}

// Motors — число моторов.
func (m *Mixer) Motors() int { return len(m.rows) }

// SetDuty пишет на каждый выход clamp(row·[x,y,z,thrust], 0, maxDuty).
// Ошибка одного выхода не останавливает запись остальных; возвращается первая.
func (m *Mixer) SetDuty(x, y, z, thrust float64) error {
	var first error
	for i, r := range m.rows {
		v := r[0]*x + r[1]*y + r[2]*z + r[3]*thrust
		if err := m.pins[i].SetDuty(Duty(v, m.maxDuty)); err != nil && first == nil {
			first = fmt.Errorf("motor %d: %w", i, err)
		}
	}
	return first
}

// halter — выход, который можно отключить (PeriphPin).
type halter interface {
	Halt() error
}

// Close останавливает моторы: пишет нулевую скважность и отключает выходы, которые это умеют.
func (m *Mixer) Close() error {
	var first error
	for i, p := range m.pins {
		err := p.SetDuty(0)
		if h, ok := p.(halter); ok {
			if herr := h.Halt(); err == nil {
				err = herr
			}
		}
		if err != nil && first == nil {
			first = fmt.Errorf("motor %d: %w", i, err)
		}
	}
	return first
}

// Duty ограничивает v диапазоном [0, max] сравнениями и отбрасывает дробную часть.
// NaN не проходит ни одно сравнение и даёт 0.
func Duty(v, max float64) uint32 {
	if v > 0 {
		if v < max {
			return uint32(v)
		}
		return uint32(max)
	}
	return 0
}

// NopMotors — рама без моторов (симуляция, стенд).
type NopMotors struct{}

func (NopMotors) SetDuty(x, y, z, thrust float64) error { return nil }
