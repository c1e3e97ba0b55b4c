package imu

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

func TestDecodeBurst(t *testing.T) {
	// ax = +1 g, ay = -1 g, az = 0, температура, gx = 131 (1 °/s), gy = -131, gz = 0
	b := []byte{
		0x40, 0x00, 0xC0, 0x00, 0x00, 0x00,
		0x12, 0x34,
		0x00, 0x83, 0xFF, 0x7D, 0x00, 0x00,
	}
	tests := []struct {
		name   string
		invert bool
		ax     float64
	}{
		{"as is", false, G},
		{"inverted", true, -G},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := decodeBurst(b, tt.invert)
			if math.Abs(s.Accel[0]-tt.ax) > 1e-9 {
				t.Errorf("ax = %v, want %v", s.Accel[0], tt.ax)
			}
			if math.Abs(s.Accel[1]+tt.ax) > 1e-9 {
				t.Errorf("ay = %v, want %v", s.Accel[1], -tt.ax)
			}
			if s.Accel[2] != 0 {
				t.Errorf("az = %v, want 0", s.Accel[2])
			}
			deg := math.Pi / 180
			if math.Abs(s.Gyro[0]-deg) > 1e-12 || math.Abs(s.Gyro[1]+deg) > 1e-12 || s.Gyro[2] != 0 {
				t.Errorf("gyro = %v, want [%v %v 0]", s.Gyro, deg, -deg)
			}
		})
	}
}

func TestSim_Level(t *testing.T) {
	s := NewSim(1, 0)
	s.Bias = [3]float64{0.01, -0.02, 0.03}
	got, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if got.Accel != [3]float64{0, 0, -G} {
		t.Errorf("accel = %v", got.Accel)
	}
	if got.Gyro != s.Bias {
		t.Errorf("gyro = %v, want bias %v", got.Gyro, s.Bias)
	}
}

func TestSim_Deterministic(t *testing.T) {
	a, b := NewSim(42, 0.1), NewSim(42, 0.1)
	for i := 0; i < 10; i++ {
		sa, _ := a.Read()
		sb, _ := b.Read()
		if sa != sb {
			t.Fatalf("read %d differs: %v vs %v", i, sa, sb)
		}
	}
}

func TestSim_Fail(t *testing.T) {
	s := NewSim(1, 0)
	s.Fail = 3
	for i := 1; i <= 6; i++ {
		_, err := s.Read()
		if i%3 == 0 {
			var de *DeviceError
			if !errors.As(err, &de) {
				t.Fatalf("read %d: err = %v, want *DeviceError", i, err)
			}
			if de.Op != "read" {
				t.Errorf("Op = %q", de.Op)
			}
			continue
		}
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
}

func TestDeviceError_Unwrap(t *testing.T) {
	base := errors.New("spi timeout")
	err := error(&DeviceError{Op: "read", Err: base})
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the bus error")
	}
	if err.Error() != "imu read: spi timeout" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTicker_Raises(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int32
	done := make(chan struct{})
	go func() {
		Ticker{Interval: time.Millisecond}.Run(ctx, func() { n.Add(1) })
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	if n.Load() < 3 {
		t.Errorf("raised %d times, want >= 3", n.Load())
	}
}
