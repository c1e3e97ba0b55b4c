package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "fc-core.yml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(writeConfig(t, "device:\n  port: /dev/ttyAMA0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Device.Port != "/dev/ttyAMA0" || c.Device.Baud != 460800 {
		t.Errorf("device = %+v", c.Device)
	}
	if c.Estimator.Strategy != "dcm" || c.Airframe != "quad" || c.Telemetry.Kind != "words" {
		t.Errorf("дефолты не применены: %+v", c)
	}
	if c.Control.PitchPk != 1 || c.Control.RollPk != 1 || c.Control.YawPk != 1 {
		t.Errorf("коэффициенты осей = %+v", c.Control)
	}
	if !c.IMU.AccelInverted() {
		t.Error("invert_accel по умолчанию true")
	}
	if c.Monitor.Baud != 460800 {
		t.Errorf("monitor.baud = %d", c.Monitor.Baud)
	}
}

func TestLoad_Full(t *testing.T) {
	body := `
imu:
  driver: sim
  invert_accel: false
  sim_gyro_bias: [0.01, 0, -0.02]
estimator:
  strategy: kalman
  q_angle: 0.002
airframe: hex
pwm:
  pins: [PWM0, PWM1, GPIO5, GPIO6, GPIO13, GPIO19]
telemetry:
  kind: bytes
control:
  telemetry: true
  pk: 10
  pitch_pk: 2
  target:
    pitch: 5
bootloader:
  command: [dfu-util, -a, "0"]
log:
  level: debug
`
	c, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatal(err)
	}
	if c.IMU.Driver != "sim" || c.IMU.AccelInverted() || c.IMU.SimGyroBias[2] != -0.02 {
		t.Errorf("imu = %+v", c.IMU)
	}
	if c.Estimator.Strategy != "kalman" || c.Estimator.QAngle != 0.002 || c.Estimator.R != 0 {
		t.Errorf("estimator = %+v", c.Estimator)
	}
	if c.Airframe != "hex" || len(c.PWM.Pins) != 6 || c.Telemetry.Kind != "bytes" {
		t.Errorf("airframe/pwm/telemetry = %s %v %s", c.Airframe, c.PWM.Pins, c.Telemetry.Kind)
	}
	ctl := c.Control
	if !ctl.Telemetry || ctl.Pk != 10 || ctl.PitchPk != 2 || ctl.RollPk != 0 || ctl.Target.Pitch != 5 {
		t.Errorf("control = %+v", ctl)
	}
	if len(c.Bootloader.Command) != 3 || c.Log.Level != "debug" {
		t.Errorf("bootloader/log = %+v %+v", c.Bootloader, c.Log)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("ожидали ошибку для отсутствующего файла")
	}
	if _, err := Load(writeConfig(t, "device: [")); err == nil {
		t.Error("ожидали ошибку разбора")
	}
}
