package imu

import "math/rand"

// Sim — симулятор неподвижного аппарата в горизонте.
// Ускорение — вектор гравитации в осях корпуса (0, 0, -G); к гироскопу добавляется постоянный дрейф Bias.
type Sim struct {
	Bias  [3]float64
	Noise float64
	// Fail при ненулевом значении делает каждый Fail-й Read ошибочным (имитация сбоя шины).
	Fail int

	rnd   *rand.Rand
	reads int
}

// NewSim создаёт симулятор с фиксированным seed, чтобы прогоны были воспроизводимы.
func NewSim(seed int64, noise float64) *Sim {
	return &Sim{Noise: noise, rnd: rand.New(rand.NewSource(seed))}
}

// Read возвращает следующее измерение.
func (s *Sim) Read() (Sample, error) {
	s.reads++
	if s.Fail > 0 && s.reads%s.Fail == 0 {
		return Sample{}, &DeviceError{Op: "read", Err: errSimBus}
	}
	var out Sample
	out.Accel = [3]float64{0, 0, -G}
	for i := 0; i < 3; i++ {
		out.Accel[i] += s.noise()
		out.Gyro[i] = s.Bias[i] + s.noise()
	}
	return out, nil
}

func (s *Sim) noise() float64 {
	if s.Noise == 0 || s.rnd == nil {
		return 0
	}
	return s.rnd.NormFloat64() * s.Noise
}

type simError string

func (e simError) Error() string { return string(e) }

const errSimBus = simError("simulated bus fault")
