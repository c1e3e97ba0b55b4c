// Package ahrs — оценка ориентации по акселерометру и гироскопу.
//
// Стратегии (dcm, kalman) реализуют один интерфейс Estimator и выбираются при старте по тегу
// из конфигурации, как алгоритмы servo: одна конкретная реализация на запуск.
package ahrs

import (
	"fmt"

	"github.com/shiwa/fc-core/internal/chrono"
	"github.com/shiwa/fc-core/internal/imu"
)

// YPR — углы Эйлера в радианах.
type YPR struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// Result — одна оценка. BiasedGyro — угловая скорость за вычетом оценённого смещения гироскопа.
type Result struct {
	YPR        YPR
	Accel      [3]float64
	Gyro       [3]float64
	BiasedGyro [3]float64
	DtS        float64
}

// Estimator — оценщик ориентации. Estimate читает одно измерение и один интервал времени.
// Ошибка устройства (*imu.DeviceError) возвращается без повтора; состояние фильтра при этом не меняется.
type Estimator interface {
	Estimate() (Result, error)
	// SetupTime сбрасывает секундомер перед первым циклом.
	SetupTime()
}

// Config — параметры оценщика.
type Config struct {
	Strategy string // dcm или kalman
	// Kalman
	QAngle float64
	QBias  float64
	R      float64
	// DCM: коэффициенты PI обратной связи по гравитации
	Kp float64
	Ki float64
}

// Стратегии
const (
	StrategyDCM    = "dcm"
	StrategyKalman = "kalman"
)

// DefaultConfig — dcm с коэффициентами по умолчанию.
func DefaultConfig() Config {
	return Config{
		Strategy: StrategyDCM,
		QAngle:   DefaultQAngle,
		QBias:    DefaultQBias,
		R:        DefaultR,
		Kp:       DefaultKp,
		Ki:       DefaultKi,
	}
}

// New создаёт оценщик выбранной стратегии.
func New(cfg Config, dev imu.Device, clock chrono.Chrono) (Estimator, error) {
	if dev == nil || clock == nil {
		return nil, fmt.Errorf("ahrs: device and clock required")
	}
	switch cfg.Strategy {
	case StrategyDCM, "":
		return NewDCM(dev, clock, cfg.Kp, cfg.Ki), nil
	case StrategyKalman:
		return NewKalman(dev, clock, cfg.QAngle, cfg.QBias, cfg.R), nil
	default:
		return nil, fmt.Errorf("ahrs: unknown strategy %q", cfg.Strategy)
	}
}

// sample читает устройство, и только после успешного чтения берёт интервал времени,
// чтобы следующий dt покрывал пропущенный цикл.
func sample(dev imu.Device, clock chrono.Chrono) (imu.Sample, float64, error) {
	s, err := dev.Read()
	if err != nil {
		return imu.Sample{}, 0, err
	}
	return s, clock.SplitS(), nil
}
