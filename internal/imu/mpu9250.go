package imu

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// Регистры MPU-9250 (register map rev 1.6)
const (
	regSmplrtDiv   = 0x19
	regConfig      = 0x1A
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regIntPinCfg   = 0x37
	regIntEnable   = 0x38
	regAccelXoutH  = 0x3B
	regUserCtrl    = 0x6A
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	spiRead = 0x80

	whoAmI9250 = 0x71
	whoAmI9255 = 0x73

	// ±2 g и ±250 °/с — значения по умолчанию после сброса
	accelLSBPerG   = 16384.0
	gyroLSBPerDegS = 131.0

	// 14 байт: accel xyz, temp, gyro xyz
	burstLen = 14
)

// MPU9250Config — параметры подключения датчика.
type MPU9250Config struct {
	Port        string // spireg имя, например "/dev/spidev0.0" или "" (первый порт)
	SpeedHz     int64
	SampleRate  int  // Гц, 4..1000
	InvertAccel bool // выдавать вектор гравитации (минус удельная сила), как ждёт DCM
}

// MPU9250 — драйвер по SPI поверх periph.io.
type MPU9250 struct {
	port spi.PortCloser
	conn spi.Conn
	cfg  MPU9250Config
	w, r [burstLen + 1]byte
}

// OpenMPU9250 открывает SPI порт, проверяет WHO_AM_I и настраивает частоту выборки и прерывание data-ready.
// periph host должен быть инициализирован заранее (InitHost).
func OpenMPU9250(cfg MPU9250Config) (*MPU9250, error) {
	if cfg.SpeedHz == 0 {
		cfg.SpeedHz = 1_000_000
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 500
	}
	p, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("spi open %s: %w", cfg.Port, err)
	}
	c, err := p.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, spi.Mode3, 8)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("spi connect %s: %w", cfg.Port, err)
	}
	d := &MPU9250{port: p, conn: c, cfg: cfg}
	if err := d.init(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return d, nil
}

func (d *MPU9250) init() error {
	if err := d.writeReg(regPwrMgmt1, 0x80); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	id, err := d.readReg(regWhoAmI)
	if err != nil {
		return err
	}
	if id != whoAmI9250 && id != whoAmI9255 {
		return &DeviceError{Op: "who_am_i", Err: fmt.Errorf("unexpected id 0x%02x", id)}
	}
	div := 1000/d.cfg.SampleRate - 1
	if div < 0 {
		div = 0
	} else if div > 255 {
		div = 255
	}
	steps := []struct{ reg, val byte }{
		{regPwrMgmt1, 0x01}, // PLL от гироскопа
		{regUserCtrl, 0x10}, // только SPI, I2C отключён
		{regConfig, 0x03},   // DLPF 41 Гц
		{regSmplrtDiv, byte(div)},
		{regGyroConfig, 0x00},
		{regAccelConfig, 0x00},
		{regIntPinCfg, 0x30}, // latch до чтения, сброс любым чтением
		{regIntEnable, 0x01}, // RAW_RDY_EN
	}
	for _, s := range steps {
		if err := d.writeReg(s.reg, s.val); err != nil {
			return err
		}
	}
	return nil
}

// Read читает accel+gyro одной транзакцией.
func (d *MPU9250) Read() (Sample, error) {
	for i := range d.w {
		d.w[i] = 0
	}
	d.w[0] = regAccelXoutH | spiRead
	if err := d.conn.Tx(d.w[:], d.r[:]); err != nil {
		return Sample{}, &DeviceError{Op: "read", Err: err}
	}
	return decodeBurst(d.r[1:], d.cfg.InvertAccel), nil
}

// decodeBurst переводит сырые big-endian значения в СИ.
func decodeBurst(b []byte, invertAccel bool) Sample {
	var s Sample
	accelScale := G / accelLSBPerG
	if invertAccel {
		accelScale = -accelScale
	}
	gyroScale := math.Pi / 180 / gyroLSBPerDegS
	for i := 0; i < 3; i++ {
		s.Accel[i] = float64(int16(binary.BigEndian.Uint16(b[2*i:]))) * accelScale
		// b[6:8] — температура
		s.Gyro[i] = float64(int16(binary.BigEndian.Uint16(b[8+2*i:]))) * gyroScale
	}
	return s
}

func (d *MPU9250) readReg(reg byte) (byte, error) {
	w := [2]byte{reg | spiRead, 0}
	var r [2]byte
	if err := d.conn.Tx(w[:], r[:]); err != nil {
		return 0, &DeviceError{Op: fmt.Sprintf("read reg 0x%02x", reg), Err: err}
	}
	return r[1], nil
}

func (d *MPU9250) writeReg(reg, val byte) error {
	w := [2]byte{reg, val}
	if err := d.conn.Tx(w[:], nil); err != nil {
		return &DeviceError{Op: fmt.Sprintf("write reg 0x%02x", reg), Err: err}
	}
	return nil
}

// Close освобождает SPI порт.
func (d *MPU9250) Close() error {
	if d.port == nil {
		return nil
	}
	return d.port.Close()
}
