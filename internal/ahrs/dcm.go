package ahrs

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shiwa/fc-core/internal/chrono"
	"github.com/shiwa/fc-core/internal/imu"
)

// Коэффициенты обратной связи DCM по умолчанию
const (
	DefaultKp = 1.0
	DefaultKi = 0.05
)

// DCM — комплементарный фильтр на матрице направляющих косинусов (Mahony).
// R переводит вектор из осей корпуса в земные. Опорное направление гравитации в осях корпуса
// при горизонте (0, 0, -1): измерение accel = [0, 0, -9.8] означает горизонт.
// Интеграл PI обратной связи — медленно меняющееся смещение гироскопа.
type DCM struct {
	dev   imu.Device
	clock chrono.Chrono

	Kp, Ki float64

	r        *mat.Dense
	integral [3]float64

	// рабочие матрицы шага интегрирования
	omega *mat.Dense
	delta *mat.Dense
}

// NewDCM создаёт стратегию dcm в ориентации "горизонт".
func NewDCM(dev imu.Device, clock chrono.Chrono, kp, ki float64) *DCM {
	return &DCM{
		dev:   dev,
		clock: clock,
		Kp:    kp,
		Ki:    ki,
		r:     identity3(),
		omega: mat.NewDense(3, 3, nil),
		delta: mat.NewDense(3, 3, nil),
	}
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func (d *DCM) SetupTime() { d.clock.Reset() }

// Bias — текущая оценка смещения гироскопа.
func (d *DCM) Bias() [3]float64 {
	return [3]float64{-d.integral[0], -d.integral[1], -d.integral[2]}
}

// Estimate выполняет один шаг.
func (d *DCM) Estimate() (Result, error) {
	s, dt, err := sample(d.dev, d.clock)
	if err != nil {
		return Result{}, err
	}
	d.update(s.Gyro, s.Accel, dt)
	bias := d.Bias()
	return Result{
		YPR:   d.euler(),
		Accel: s.Accel,
		Gyro:  s.Gyro,
		BiasedGyro: [3]float64{
			s.Gyro[0] - bias[0],
			s.Gyro[1] - bias[1],
			s.Gyro[2] - bias[2],
		},
		DtS: dt,
	}, nil
}

func (d *DCM) update(gyro, accel [3]float64, dt float64) {
	var e [3]float64
	norm := math.Sqrt(accel[0]*accel[0] + accel[1]*accel[1] + accel[2]*accel[2])
	if norm > 0 && !math.IsNaN(norm) && !math.IsInf(norm, 0) {
		v := [3]float64{accel[0] / norm, accel[1] / norm, accel[2] / norm}
		// ожидаемое направление гравитации в осях корпуса: R^T·(0,0,-1) = -(третья строка R)
		g := [3]float64{-d.r.At(2, 0), -d.r.At(2, 1), -d.r.At(2, 2)}
		e = cross(v, g)
	}

	var w [3]float64
	for i := 0; i < 3; i++ {
		d.integral[i] += d.Ki * e[i] * dt
		w[i] = gyro[i] + d.Kp*e[i] + d.integral[i]
	}

	// R += R·[ω]× ·dt
	d.omega.Set(0, 1, -w[2]*dt)
	d.omega.Set(0, 2, w[1]*dt)
	d.omega.Set(1, 0, w[2]*dt)
	d.omega.Set(1, 2, -w[0]*dt)
	d.omega.Set(2, 0, -w[1]*dt)
	d.omega.Set(2, 1, w[0]*dt)
	d.delta.Mul(d.r, d.omega)
	d.r.Add(d.r, d.delta)
	d.orthonormalize()
}

// orthonormalize — Грам-Шмидт по строкам R.
func (d *DCM) orthonormalize() {
	x := mat.NewVecDense(3, []float64{d.r.At(0, 0), d.r.At(0, 1), d.r.At(0, 2)})
	y := mat.NewVecDense(3, []float64{d.r.At(1, 0), d.r.At(1, 1), d.r.At(1, 2)})

	half := mat.Dot(x, y) / 2
	xn := mat.NewVecDense(3, nil)
	yn := mat.NewVecDense(3, nil)
	xn.AddScaledVec(x, -half, y)
	yn.AddScaledVec(y, -half, x)
	xn.ScaleVec(1/mat.Norm(xn, 2), xn)
	yn.ScaleVec(1/mat.Norm(yn, 2), yn)
	z := cross(
		[3]float64{xn.AtVec(0), xn.AtVec(1), xn.AtVec(2)},
		[3]float64{yn.AtVec(0), yn.AtVec(1), yn.AtVec(2)},
	)

	for j := 0; j < 3; j++ {
		d.r.Set(0, j, xn.AtVec(j))
		d.r.Set(1, j, yn.AtVec(j))
		d.r.Set(2, j, z[j])
	}
}

func (d *DCM) euler() YPR {
	r20 := d.r.At(2, 0)
	if r20 > 1 {
		r20 = 1
	} else if r20 < -1 {
		r20 = -1
	}
	return YPR{
		Yaw:   math.Atan2(d.r.At(1, 0), d.r.At(0, 0)),
		Pitch: -math.Asin(r20),
		Roll:  math.Atan2(d.r.At(2, 1), d.r.At(2, 2)),
	}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
