// Package imu — интерфейс инерциального датчика (акселерометр + гироскоп) и его реализации:
// MPU-9250 по SPI (periph.io) и детерминированный симулятор.
package imu

import "fmt"

// G — ускорение свободного падения, м/с².
const G = 9.80665

// Sample — одно измерение: ускорение в м/с², угловая скорость в рад/с, оси корпуса x, y, z.
type Sample struct {
	Accel [3]float64
	Gyro  [3]float64
}

// Device — источник измерений. Read не повторяет неудачную транзакцию: ошибка шины
// возвращается как *DeviceError, решение принимает вызывающий.
type Device interface {
	Read() (Sample, error)
}

// DeviceError — сбой транзакции на шине датчика.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("imu %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
