package mixer

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// PWMConfig — выходы моторов на GPIO с аппаратным ШИМ.
type PWMConfig struct {
	Pins        []string
	FrequencyHz int64
	Resolution  uint32 // максимальная скважность в единицах микшера
}

// PeriphPin — выход мотора через periph gpio.PinOut.PWM.
type PeriphPin struct {
	pin        gpio.PinOut
	freq       physic.Frequency
	resolution uint32
}

// SetDuty переводит duty из [0, resolution] в gpio.Duty.
func (p *PeriphPin) SetDuty(duty uint32) error {
	if duty > p.resolution {
		duty = p.resolution
	}
	d := gpio.Duty(int64(duty) * int64(gpio.DutyMax) / int64(p.resolution))
	return p.pin.PWM(d, p.freq)
}

// Halt останавливает выход.
func (p *PeriphPin) Halt() error { return p.pin.Halt() }

// OpenPWM находит выходы по именам. periph host должен быть инициализирован (imu.InitHost).
// Возвращает выходы и максимальную скважность.
func OpenPWM(cfg PWMConfig) ([]Pin, uint32, error) {
	if cfg.Resolution == 0 {
		cfg.Resolution = 1000
	}
	if cfg.FrequencyHz <= 0 {
		cfg.FrequencyHz = 400
	}
	freq := physic.Frequency(cfg.FrequencyHz) * physic.Hertz
	pins := make([]Pin, 0, len(cfg.Pins))
	for _, name := range cfg.Pins {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, 0, fmt.Errorf("pwm pin %q not found", name)
		}
		pp := &PeriphPin{pin: p, freq: freq, resolution: cfg.Resolution}
		// моторы стартуют с нулевой скважностью
		if err := pp.SetDuty(0); err != nil {
			return nil, 0, fmt.Errorf("pwm %s: %w", name, err)
		}
		pins = append(pins, pp)
	}
	return pins, cfg.Resolution, nil
}
