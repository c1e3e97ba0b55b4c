package ahrs

import (
	"math"

	"github.com/shiwa/fc-core/internal/chrono"
	"github.com/shiwa/fc-core/internal/imu"
)

// Шумы фильтра по умолчанию
const (
	DefaultQAngle = 0.001
	DefaultQBias  = 0.003
	DefaultR      = 0.03
)

// AngularKalman — скалярный фильтр Калмана с состоянием (угол, смещение гироскопа).
// Ковариация обновляется в несимметризованной форме первого порядка.
type AngularKalman struct {
	QA, QB, R float64

	Angle float64
	Bias  float64
	Rate  float64
	P     [2][2]float64
}

// NewAngularKalman создаёт фильтр с нулевой начальной ковариацией.
func NewAngularKalman(qa, qb, r float64) *AngularKalman {
	return &AngularKalman{QA: qa, QB: qb, R: r}
}

// Step — прогноз по скорости rate и коррекция по измеренному углу; возвращает новый угол.
func (k *AngularKalman) Step(measured, rate, dt float64) float64 {
	k.Rate = rate - k.Bias
	k.Angle += k.Rate * dt

	k.P[0][0] += dt * (dt*k.P[1][1] - k.P[0][1] - k.P[1][0] + k.QA)
	k.P[0][1] -= dt * k.P[1][1]
	k.P[1][0] -= dt * k.P[1][1]
	k.P[1][1] += k.QB * dt

	s := k.P[0][0] + k.R
	k0 := k.P[0][0] / s
	k1 := k.P[1][0] / s

	y := measured - k.Angle
	k.Angle += k0 * y
	k.Bias += k1 * y

	k.P[0][0] -= k0 * k.P[0][0]
	k.P[0][1] -= k0 * k.P[0][1]
	k.P[1][0] -= k1 * k.P[0][0]
	k.P[1][1] -= k1 * k.P[0][1]

	return k.Angle
}

// Kalman — стратегия из двух скалярных фильтров (крен, тангаж); рысканье интегрируется без коррекции.
type Kalman struct {
	dev   imu.Device
	clock chrono.Chrono

	roll  *AngularKalman
	pitch *AngularKalman
	yaw   float64
}

// NewKalman создаёт стратегию kalman.
func NewKalman(dev imu.Device, clock chrono.Chrono, qa, qb, r float64) *Kalman {
	return &Kalman{
		dev:   dev,
		clock: clock,
		roll:  NewAngularKalman(qa, qb, r),
		pitch: NewAngularKalman(qa, qb, r),
	}
}

func (k *Kalman) SetupTime() { k.clock.Reset() }

// Estimate выполняет один шаг.
func (k *Kalman) Estimate() (Result, error) {
	s, dt, err := sample(k.dev, k.clock)
	if err != nil {
		return Result{}, err
	}
	ax, ay, az := s.Accel[0], s.Accel[1], s.Accel[2]
	gx, gy, gz := s.Gyro[0], s.Gyro[1], s.Gyro[2]

	// accel — вектор гравитации в осях корпуса, горизонт (0, 0, -g), как в DCM
	rollMeas := math.Atan2(-ay, -az)
	pitchMeas := math.Atan(ax / math.Sqrt(ay*ay+az*az))

	// На границе ±180° фильтр не догонит измерение через переход, ставим угол сразу.
	if (rollMeas < -math.Pi/2 && k.roll.Angle > math.Pi/2) || (rollMeas > math.Pi/2 && k.roll.Angle < -math.Pi/2) {
		k.roll.Angle = rollMeas
		k.roll.Rate = gx - k.roll.Bias
	} else {
		k.roll.Step(rollMeas, gx, dt)
	}
	k.pitch.Step(pitchMeas, gy, dt)
	k.yaw = wrapPi(k.yaw + gz*dt)

	return Result{
		YPR:        YPR{Yaw: k.yaw, Pitch: k.pitch.Angle, Roll: k.roll.Angle},
		Accel:      s.Accel,
		Gyro:       s.Gyro,
		BiasedGyro: [3]float64{gx - k.roll.Bias, gy - k.pitch.Bias, gz},
		DtS:        dt,
	}, nil
}

// wrapPi приводит угол к (-π, π].
func wrapPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
