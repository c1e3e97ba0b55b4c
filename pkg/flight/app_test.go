package flight

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shiwa/fc-core/internal/ahrs"
	"github.com/shiwa/fc-core/internal/chrono"
	"github.com/shiwa/fc-core/internal/config"
	"github.com/shiwa/fc-core/internal/imu"
	"github.com/shiwa/fc-core/internal/link"
	"github.com/shiwa/fc-core/internal/logger"
	"github.com/shiwa/fc-core/internal/mixer"
	"github.com/shiwa/fc-core/internal/telemetry"
)

type levelIMU struct {
	mu    sync.Mutex
	fail  bool
	reads int
}

func (d *levelIMU) Read() (imu.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.fail {
		return imu.Sample{}, &imu.DeviceError{Op: "read", Err: errors.New("bus")}
	}
	return imu.Sample{Accel: [3]float64{0, 0, -9.8}}, nil
}

// steppedReady поднимает задачу датчика n раз, дожидаясь выполнения каждого цикла.
type steppedReady struct {
	n      int
	cycles func() uint64
	done   chan struct{}
}

func (r *steppedReady) Run(ctx context.Context, raise func()) {
	defer close(r.done)
	for i := 0; i < r.n; i++ {
		want := r.cycles() + 1
		raise()
		for r.cycles() < want {
			if ctx.Err() != nil {
				return
			}
			time.Sleep(50 * time.Microsecond)
		}
	}
}

type pin struct {
	mu   sync.Mutex
	duty uint32
}

func (p *pin) SetDuty(d uint32) error {
	p.mu.Lock()
	p.duty = d
	p.mu.Unlock()
	return nil
}

// captureTx запоминает переданные кадры; передача завершается сразу.
type captureTx struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *captureTx) Start(p []byte) link.Transfer {
	c.mu.Lock()
	c.frames = append(c.frames, append([]byte(nil), p...))
	c.mu.Unlock()
	return c
}
func (c *captureTx) Done() bool { return true }
func (c *captureTx) Err() error { return nil }

func (c *captureTx) all() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

type mockBoot struct {
	mu            sync.Mutex
	boots, resets int
}

func (b *mockBoot) ToBootloader() error {
	b.mu.Lock()
	b.boots++
	b.mu.Unlock()
	return nil
}

func (b *mockBoot) SystemReset() {
	b.mu.Lock()
	b.resets++
	b.mu.Unlock()
}

func (b *mockBoot) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.boots, b.resets
}

func quietLogger() *logger.Logger { return logger.New(io.Discard, "", logger.LevelError) }

func newTestApp(t *testing.T, cfg *config.Config, hw *Hardware) *App {
	t.Helper()
	a, err := New(cfg, hw, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestApp_LevelAndEqualDuty(t *testing.T) {
	for _, strategy := range []string{ahrs.StrategyDCM, ahrs.StrategyKalman} {
		t.Run(strategy, func(t *testing.T) { testLevelAndEqualDuty(t, strategy) })
	}
}

func testLevelAndEqualDuty(t *testing.T, strategy string) {
	cfg := config.Default()
	cfg.Estimator.Strategy = strategy
	cfg.Control.Thrust = 500
	cfg.Control.Pk = 10
	cfg.Control.Dk = 1
	cfg.Control.Telemetry = true

	pins := make([]*pin, 4)
	outs := make([]mixer.Pin, 4)
	for i := range pins {
		pins[i] = &pin{}
		outs[i] = pins[i]
	}
	m, err := mixer.New(mixer.Quad, outs, 1000)
	if err != nil {
		t.Fatal(err)
	}
	tx := &captureTx{}
	ready := &steppedReady{n: 300, done: make(chan struct{})}
	hw := &Hardware{
		IMU:    &levelIMU{},
		Ready:  ready,
		Clock:  &chrono.Fixed{Dt: 0.01},
		Motors: m,
		Tx:     tx,
	}
	a := newTestApp(t, cfg, hw)
	ready.cycles = func() uint64 { runs, _ := a.imuTask.Stats(); return runs }

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	select {
	case <-ready.done:
	case <-time.After(10 * time.Second):
		t.Fatal("циклы не выполнены")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	st := a.State()
	if math.Abs(st.Ahrs.YPR.Pitch) > 1e-3 || math.Abs(st.Ahrs.YPR.Roll) > 1e-3 {
		t.Errorf("нет горизонта: %+v", st.Ahrs.YPR)
	}
	if st.Ahrs.DtS != 0.01 {
		t.Errorf("dt = %v", st.Ahrs.DtS)
	}
	for i, p := range pins {
		if p.duty != 500 {
			t.Errorf("мотор %d: duty = %d, want 500", i, p.duty)
		}
	}
	frames := tx.all()
	if len(frames) != 300 {
		t.Errorf("кадров телеметрии %d, want 300", len(frames))
	}
	f, err := telemetry.Parse(frames[len(frames)-1])
	if err != nil || f.Kind != "tm" {
		t.Errorf("последний кадр %q: %v", frames[len(frames)-1], err)
	}
}

func TestApp_DeviceErrorSkipsCycle(t *testing.T) {
	cfg := config.Default()
	cfg.Control.Thrust = 300
	p := &pin{duty: 7}
	m, _ := mixer.New([]mixer.Row{{0, 0, 0, 1}}, []mixer.Pin{p}, 1000)
	dev := &levelIMU{fail: true}
	ready := &steppedReady{n: 5, done: make(chan struct{})}
	clk := &chrono.Fixed{Dt: 0.01}
	hw := &Hardware{IMU: dev, Ready: ready, Clock: clk, Motors: m}
	a := newTestApp(t, cfg, hw)
	ready.cycles = func() uint64 { runs, _ := a.imuTask.Stats(); return runs }

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	<-ready.done
	cancel()
	<-errc

	if p.duty != 7 {
		t.Errorf("при ошибке датчика моторы не должны обновляться, duty = %d", p.duty)
	}
	if clk.Splits != 0 {
		t.Errorf("splits = %d, want 0", clk.Splits)
	}
}

func TestApp_Commands(t *testing.T) {
	cfg := config.Default()
	pr, pw := io.Pipe()
	tx := &captureTx{}
	boot := &mockBoot{}
	hw := &Hardware{
		IMU:    &levelIMU{},
		Clock:  &chrono.Fixed{Dt: 0.01},
		Motors: mixer.NopMotors{},
		Tx:     tx,
		Rx:     link.NewRxPort(pr, 0),
		Boot:   boot,
	}
	a := newTestApp(t, cfg, hw)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	send := func(s string) {
		if _, err := io.WriteString(pw, s); err != nil {
			t.Fatal(err)
		}
	}
	waitFor := func(what string, cond func() bool) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for !cond() {
			if time.Now().After(deadline) {
				t.Fatalf("не дождались: %s", what)
			}
			time.Sleep(time.Millisecond)
		}
	}

	send("pk=10\r\n")
	send("status\r\n")
	waitFor("ответ на status", func() bool { return len(tx.all()) == 1 })
	send("boot\n")
	waitFor("boot", func() bool { b, _ := boot.counts(); return b == 1 })
	send("reset\n")
	waitFor("reset", func() bool { _, r := boot.counts(); return r == 1 })

	cancel()
	_ = pw.Close()
	<-errc

	if a.Control().Pk != 10 {
		t.Errorf("pk = %v, want 10", a.Control().Pk)
	}
	lines := bytes.SplitAfter(tx.all()[0], []byte("\n"))
	ct, err := telemetry.Parse(lines[0])
	if err != nil || ct.Kind != "ct" {
		t.Fatalf("status: %q, %v", tx.all()[0], err)
	}
	if tm, err := telemetry.Parse(lines[1]); err != nil || tm.Kind != "tm" {
		t.Errorf("status без кадра tm: %q, %v", tx.all()[0], err)
	}
	if v, _ := ct.Field("pk"); v != 10 {
		t.Errorf("ct pk = %v", v)
	}
}

func TestApp_CommandBurst(t *testing.T) {
	cfg := config.Default()
	pr, pw := io.Pipe()
	tx := &captureTx{}
	hw := &Hardware{
		IMU:    &levelIMU{},
		Clock:  &chrono.Fixed{Dt: 0.01},
		Motors: mixer.NopMotors{},
		Tx:     tx,
		Rx:     link.NewRxPort(pr, 0),
	}
	a := newTestApp(t, cfg, hw)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	// одна запись длиннее очереди команд
	go func() { _, _ = io.WriteString(pw, "tthurst=100\r\npk=7\r\ndk=3\r\nypk=2\r\nstatus\r\n") }()

	deadline := time.Now().Add(5 * time.Second)
	for len(tx.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("нет ответа на status")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	_ = pw.Close()
	<-errc

	ctl := a.Control()
	if ctl.Thrust != 100 || ctl.Pk != 7 || ctl.Dk != 3 || ctl.YawPk != 2 {
		t.Errorf("thrust=%v pk=%v dk=%v ypk=%v, want 100 7 3 2", ctl.Thrust, ctl.Pk, ctl.Dk, ctl.YawPk)
	}
	ct, err := telemetry.Parse(bytes.SplitAfter(tx.all()[0], []byte("\n"))[0])
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := ct.Field("dk"); v != 3 {
		t.Errorf("ct dk = %v, want 3", v)
	}
}

func TestOpenHardware_SimDefaultRate(t *testing.T) {
	cfg := config.Default()
	cfg.IMU.Driver = "sim"
	cfg.IMU.RateHz = 0
	cfg.Airframe = "none"
	cfg.Device.Port = ""
	var buf bytes.Buffer
	hw, err := OpenHardware(cfg, nil, logger.New(&buf, "", logger.LevelInfo))
	if err != nil {
		t.Fatal(err)
	}
	defer hw.Close()

	if !strings.Contains(buf.String(), "imu: simulator at 500 Hz") {
		t.Errorf("лог: %q", buf.String())
	}
	if tk, ok := hw.Ready.(imu.Ticker); !ok || tk.Interval != 2*time.Millisecond {
		t.Errorf("Ready = %#v, want Ticker 2ms", hw.Ready)
	}
	if hw.Tx != nil || hw.Rx != nil {
		t.Error("без порта канал не открывается")
	}
}
