package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shiwa/fc-core/internal/control"
)

// Config — конфигурация fc-core и fc-mon
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	IMU        IMUConfig        `yaml:"imu"`
	Estimator  EstimatorConfig  `yaml:"estimator"`
	Airframe   string           `yaml:"airframe"` // quad, hex, none
	PWM        PWMConfig        `yaml:"pwm"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Control    control.Control  `yaml:"control"`
	Bootloader BootloaderConfig `yaml:"bootloader"`
	Log        LogConfig        `yaml:"log"`
	Monitor    MonitorConfig    `yaml:"monitor"`
}

// DeviceConfig — последовательный порт канала связи. Пустой port — без канала (симуляция).
type DeviceConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// IMUConfig — датчик и источник data-ready
type IMUConfig struct {
	Driver       string `yaml:"driver"` // mpu9250 или sim
	SPIPort      string `yaml:"spi_port"`
	SPISpeedHz   int64  `yaml:"spi_speed_hz"`
	RateHz       int    `yaml:"rate_hz"`
	DataReadyPin string `yaml:"data_ready_pin"` // пусто — таймер с частотой rate_hz
	// InvertAccel: датчик выдаёт удельную силу (+g вверх в покое), оценщик ждёт вектор гравитации.
	InvertAccel *bool `yaml:"invert_accel"`

	SimSeed     int64      `yaml:"sim_seed"`
	SimNoise    float64    `yaml:"sim_noise"`
	SimGyroBias [3]float64 `yaml:"sim_gyro_bias"`
}

// AccelInverted — значение invert_accel, по умолчанию true.
func (c IMUConfig) AccelInverted() bool {
	return c.InvertAccel == nil || *c.InvertAccel
}

// EstimatorConfig — стратегия оценки ориентации (dcm, kalman) и её коэффициенты
type EstimatorConfig struct {
	Strategy string  `yaml:"strategy"`
	QAngle   float64 `yaml:"q_angle"`
	QBias    float64 `yaml:"q_bias"`
	R        float64 `yaml:"r"`
	Kp       float64 `yaml:"kp"`
	Ki       float64 `yaml:"ki"`
}

// PWMConfig — выходы моторов
type PWMConfig struct {
	Pins        []string `yaml:"pins"`
	FrequencyHz int64    `yaml:"frequency_hz"`
	Resolution  uint32   `yaml:"resolution"`
}

// TelemetryConfig — формат кадров: none, words, bytes
type TelemetryConfig struct {
	Kind string `yaml:"kind"`
}

// BootloaderConfig — резервный регистр и программа загрузчика
type BootloaderConfig struct {
	RegisterFile string   `yaml:"register_file"`
	Command      []string `yaml:"command"`
}

// LogConfig — уровень логов: debug, info, error
type LogConfig struct {
	Level string `yaml:"level"`
}

// MonitorConfig — наземная станция fc-mon
type MonitorConfig struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	Listen      string `yaml:"listen"` // адрес websocket, пусто — выключено
	RedisAddr   string `yaml:"redis_addr"`
	RedisStream string `yaml:"redis_stream"`
	RedisMaxLen int64  `yaml:"redis_maxlen"`
}

// Default возвращает конфиг по умолчанию
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Port: "/dev/ttyS0",
			Baud: 460800,
		},
		IMU: IMUConfig{
			Driver:     "mpu9250",
			SPISpeedHz: 1000000,
			RateHz:     500,
		},
		Estimator: EstimatorConfig{
			Strategy: "dcm",
			QAngle:   0.001,
			QBias:    0.003,
			R:        0.03,
			Kp:       1.0,
			Ki:       0.05,
		},
		Airframe: "quad",
		PWM: PWMConfig{
			FrequencyHz: 400,
			Resolution:  1000,
		},
		Telemetry: TelemetryConfig{Kind: "words"},
		Control:   control.Default(),
		Bootloader: BootloaderConfig{
			RegisterFile: "/var/lib/fc-core/bkp0r",
		},
		Log: LogConfig{Level: "info"},
		Monitor: MonitorConfig{
			Port:        "/dev/ttyUSB0",
			Baud:        460800,
			RedisStream: "fc:telemetry",
			RedisMaxLen: 100000,
		},
	}
}

// Load читает конфиг из YAML
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Device.Baud == 0 {
		c.Device.Baud = d.Device.Baud
	}
	if c.IMU.Driver == "" {
		c.IMU.Driver = d.IMU.Driver
	}
	if c.IMU.SPISpeedHz == 0 {
		c.IMU.SPISpeedHz = d.IMU.SPISpeedHz
	}
	if c.IMU.RateHz == 0 {
		c.IMU.RateHz = d.IMU.RateHz
	}
	if c.Estimator.Strategy == "" {
		c.Estimator.Strategy = d.Estimator.Strategy
	}
	if c.Estimator.QAngle == 0 && c.Estimator.QBias == 0 && c.Estimator.R == 0 {
		c.Estimator.QAngle, c.Estimator.QBias, c.Estimator.R = d.Estimator.QAngle, d.Estimator.QBias, d.Estimator.R
	}
	if c.Estimator.Kp == 0 && c.Estimator.Ki == 0 {
		c.Estimator.Kp, c.Estimator.Ki = d.Estimator.Kp, d.Estimator.Ki
	}
	if c.Airframe == "" {
		c.Airframe = d.Airframe
	}
	if c.PWM.FrequencyHz == 0 {
		c.PWM.FrequencyHz = d.PWM.FrequencyHz
	}
	if c.PWM.Resolution == 0 {
		c.PWM.Resolution = d.PWM.Resolution
	}
	if c.Telemetry.Kind == "" {
		c.Telemetry.Kind = d.Telemetry.Kind
	}
	if c.Control.PitchPk == 0 && c.Control.RollPk == 0 && c.Control.YawPk == 0 {
		c.Control.PitchPk, c.Control.RollPk, c.Control.YawPk = d.Control.PitchPk, d.Control.RollPk, d.Control.YawPk
	}
	if c.Bootloader.RegisterFile == "" {
		c.Bootloader.RegisterFile = d.Bootloader.RegisterFile
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Monitor.Port == "" {
		c.Monitor.Port = d.Monitor.Port
	}
	if c.Monitor.Baud == 0 {
		c.Monitor.Baud = c.Device.Baud
	}
	if c.Monitor.RedisStream == "" {
		c.Monitor.RedisStream = d.Monitor.RedisStream
	}
	if c.Monitor.RedisMaxLen == 0 {
		c.Monitor.RedisMaxLen = d.Monitor.RedisMaxLen
	}
}
