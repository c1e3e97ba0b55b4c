package flight

import (
	"fmt"
	"io"
	"time"

	"github.com/shiwa/fc-core/internal/bootloader"
	"github.com/shiwa/fc-core/internal/chrono"
	"github.com/shiwa/fc-core/internal/config"
	"github.com/shiwa/fc-core/internal/imu"
	"github.com/shiwa/fc-core/internal/link"
	"github.com/shiwa/fc-core/internal/logger"
	"github.com/shiwa/fc-core/internal/mixer"
)

// Bootloader — переход в загрузчик и сброс системы.
type Bootloader interface {
	ToBootloader() error
	SystemReset()
}

// Hardware — внешние устройства контура управления.
type Hardware struct {
	IMU    imu.Device
	Ready  imu.DataReady
	Clock  chrono.Chrono
	Motors mixer.MotorCtrl
	// Tx и Rx — канал связи; nil — без канала.
	Tx   link.Transmitter
	Rx   *link.RxPort
	Boot Bootloader

	closers []io.Closer
}

// Close освобождает устройства в обратном порядке открытия.
func (h *Hardware) Close() error {
	var first error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	h.closers = nil
	return first
}

// OpenHardware открывает устройства по конфигурации. boot — уже созданный загрузчик (может быть nil).
func OpenHardware(cfg *config.Config, boot Bootloader, log *logger.Logger) (*Hardware, error) {
	if log == nil {
		log = logger.Default()
	}
	hw := &Hardware{Clock: chrono.NewStopwatch(), Boot: boot}
	ok := false
	defer func() {
		if !ok {
			_ = hw.Close()
		}
	}()

	rate := cfg.IMU.RateHz
	if rate <= 0 {
		rate = 500
	}
	interval := time.Second / time.Duration(rate)
	switch cfg.IMU.Driver {
	case "sim":
		sim := imu.NewSim(cfg.IMU.SimSeed, cfg.IMU.SimNoise)
		sim.Bias = cfg.IMU.SimGyroBias
		hw.IMU = sim
		hw.Ready = imu.Ticker{Interval: interval}
		log.Info("imu: simulator at %d Hz", rate)
	case "mpu9250":
		if err := imu.InitHost(); err != nil {
			return nil, err
		}
		dev, err := imu.OpenMPU9250(imu.MPU9250Config{
			Port:        cfg.IMU.SPIPort,
			SpeedHz:     cfg.IMU.SPISpeedHz,
			SampleRate:  rate,
			InvertAccel: cfg.IMU.AccelInverted(),
		})
		if err != nil {
			return nil, err
		}
		hw.closers = append(hw.closers, dev)
		hw.IMU = dev
		if cfg.IMU.DataReadyPin != "" {
			pin, err := imu.OpenEdgePin(cfg.IMU.DataReadyPin)
			if err != nil {
				return nil, err
			}
			hw.Ready = pin
		} else {
			hw.Ready = imu.Ticker{Interval: interval}
		}
		log.Info("imu: mpu9250 on %q at %d Hz", cfg.IMU.SPIPort, rate)
	default:
		return nil, fmt.Errorf("imu: unknown driver %q", cfg.IMU.Driver)
	}

	if cfg.Airframe == "none" {
		hw.Motors = mixer.NopMotors{}
	} else {
		rows, err := mixer.Geometry(cfg.Airframe)
		if err != nil {
			return nil, err
		}
		if err := imu.InitHost(); err != nil {
			return nil, err
		}
		pins, maxDuty, err := mixer.OpenPWM(mixer.PWMConfig{
			Pins:        cfg.PWM.Pins,
			FrequencyHz: cfg.PWM.FrequencyHz,
			Resolution:  cfg.PWM.Resolution,
		})
		if err != nil {
			return nil, err
		}
		m, err := mixer.New(rows, pins, maxDuty)
		if err != nil {
			return nil, err
		}
		hw.closers = append(hw.closers, m)
		hw.Motors = m
		log.Info("motors: %s, %d outputs, max duty %d", cfg.Airframe, m.Motors(), maxDuty)
	}

	if cfg.Device.Port != "" {
		port, err := link.OpenSerial(cfg.Device.Port, cfg.Device.Baud)
		if err != nil {
			return nil, err
		}
		hw.closers = append(hw.closers, port)
		dma := link.NewDMA(port)
		hw.closers = append(hw.closers, dma)
		hw.Tx = dma
		hw.Rx = link.NewRxPort(port, link.RxFIFODepth)
		log.Info("link: %s %d baud", cfg.Device.Port, cfg.Device.Baud)
	}

	ok = true
	return hw, nil
}

// NewBootloader создаёт загрузчик на файле резервного регистра.
func NewBootloader(cfg *config.Config, cancel func()) *bootloader.Host {
	return bootloader.NewHost(bootloader.FileRegister{Path: cfg.Bootloader.RegisterFile}, cfg.Bootloader.Command, cancel)
}
