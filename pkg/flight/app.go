// Package flight связывает оценщик, регулятор, микшер, телеметрию и разбор команд
// в задачи диспетчера: задача датчика (приоритет 3), задача приёма UART (2) и idle.
package flight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shiwa/fc-core/internal/ahrs"
	"github.com/shiwa/fc-core/internal/command"
	"github.com/shiwa/fc-core/internal/config"
	"github.com/shiwa/fc-core/internal/control"
	"github.com/shiwa/fc-core/internal/link"
	"github.com/shiwa/fc-core/internal/logger"
	"github.com/shiwa/fc-core/internal/sched"
	"github.com/shiwa/fc-core/internal/spsc"
	"github.com/shiwa/fc-core/internal/telemetry"
)

// App — собранный контур управления.
type App struct {
	hw  *Hardware
	est ahrs.Estimator
	tel telemetry.Telemetry
	log *logger.Logger

	sched   *sched.Scheduler
	imuTask *sched.Task
	rxTask  *sched.Task
	idle    *sched.Task

	control  *sched.Resource[control.Control]
	slot     *sched.Resource[link.Slot]
	logRes   *sched.Resource[*logger.Logger]
	snapshot *sched.Resource[control.State]

	// локальное состояние задачи датчика
	state control.State

	queue     spsc.Queue
	producer  *spsc.Producer
	consumer  *spsc.Consumer
	rxStalled atomic.Bool
	cmd       command.Cmd

	channel *link.Channel
}

// New собирает приложение на готовом оборудовании.
func New(cfg *config.Config, hw *Hardware, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Default()
	}
	est, err := ahrs.New(ahrs.Config{
		Strategy: cfg.Estimator.Strategy,
		QAngle:   cfg.Estimator.QAngle,
		QBias:    cfg.Estimator.QBias,
		R:        cfg.Estimator.R,
		Kp:       cfg.Estimator.Kp,
		Ki:       cfg.Estimator.Ki,
	}, hw.IMU, hw.Clock)
	if err != nil {
		return nil, err
	}
	tel, err := telemetry.New(cfg.Telemetry.Kind)
	if err != nil {
		return nil, err
	}
	if hw.Motors == nil {
		return nil, fmt.Errorf("flight: motors required")
	}

	a := &App{hw: hw, est: est, tel: tel, log: log, sched: sched.New()}
	a.producer, a.consumer, err = a.queue.Split()
	if err != nil {
		return nil, err
	}

	a.imuTask = a.sched.Task("imu", sched.PrioIMU, a.onIMU)
	a.rxTask = a.sched.Task("uart-rx", sched.PrioRx, a.onRx)
	a.idle = a.sched.Idle("idle", a.onIdle)

	var slot link.Slot
	if hw.Tx != nil {
		a.channel = link.NewChannel(hw.Tx)
		slot.Replace(a.channel)
	}
	a.control = sched.NewResource("control", cfg.Control, a.imuTask, a.idle)
	a.slot = sched.NewResource("channel", slot, a.imuTask, a.idle)
	a.logRes = sched.NewResource("log", log, a.imuTask, a.rxTask, a.idle)
	a.snapshot = sched.NewResource("state", control.State{}, a.imuTask, a.idle)
	return a, nil
}

// Run запускает источники событий и диспетчер до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.est.SetupTime()

	var wg sync.WaitGroup
	if a.hw.Ready != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.hw.Ready.Run(ctx, func() { a.sched.Raise(a.imuTask) })
		}()
	}
	if a.hw.Rx != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.hw.Rx.Run(ctx, func() { a.sched.Raise(a.rxTask) }); err != nil {
				a.log.Error("uart rx: %v", err)
			}
		}()
	}

	a.log.Info("flight loop started: estimator=%s telemetry=%s", a.strategy(), a.tel.Kind())
	err := a.sched.Run(ctx)
	cancel()
	wg.Wait()
	a.logStats()
	return err
}

func (a *App) strategy() string {
	switch a.est.(type) {
	case *ahrs.DCM:
		return ahrs.StrategyDCM
	case *ahrs.Kalman:
		return ahrs.StrategyKalman
	default:
		return "unknown"
	}
}

func (a *App) logStats() {
	runs, coalesced := a.imuTask.Stats()
	a.log.Info("imu cycles=%d missed=%d", runs, coalesced)
	if a.hw.Rx != nil {
		a.log.Info("link bytes received=%d", a.hw.Rx.Received())
	}
	if d, ok := a.hw.Tx.(interface{ Bytes() uint64 }); ok {
		a.log.Info("link bytes transmitted=%d", d.Bytes())
	}
	if a.channel != nil {
		a.channel.Poll()
		sent, dropped, failed := a.channel.Stats()
		a.log.Info("link frames sent=%d dropped=%d failed=%d", sent, dropped, failed)
		if err := a.channel.LastErr(); err != nil {
			a.log.Error("link: last error: %v", err)
		}
	}
}

// Control — параметры после завершения Run.
func (a *App) Control() control.Control { return a.control.Value() }

// State — последний снимок контура после завершения Run.
func (a *App) State() control.State { return a.snapshot.Value() }

// onIMU — цикл управления: измерение, оценка, регулятор, моторы, телеметрия.
// При ошибке датчика цикл пропускается целиком.
func (a *App) onIMU(c *sched.Context) {
	res, err := a.est.Estimate()
	if err != nil {
		a.logRes.Lock(c, func(l **logger.Logger) { (*l).Error("imu: %v", err) })
		return
	}
	var ctl control.Control
	a.control.Lock(c, func(v *control.Control) { ctl = *v })

	a.state.Ahrs = res
	a.state.Cmd, a.state.Errors = control.BodyRate(&a.state, &ctl)
	cmd := a.state.Cmd
	if err := a.hw.Motors.SetDuty(cmd[0], cmd[1], cmd[2], ctl.Thrust); err != nil {
		a.logRes.Lock(c, func(l **logger.Logger) { (*l).Error("motors: %v", err) })
	}

	a.snapshot.Lock(c, func(s *control.State) { *s = a.state })
	if !ctl.Telemetry {
		return
	}
	a.slot.Lock(c, func(s *link.Slot) {
		if ch := s.Take(); ch != nil {
			s.Replace(telemetry.Send(ch, a.tel, &a.state))
		}
	})
}

// onRx переносит принятые байты из FIFO приёмника в очередь команд.
// Пока очередь полна, байты остаются в FIFO; idle снова поднимет задачу, освободив место.
func (a *App) onRx(c *sched.Context) {
	if a.hw.Rx == nil {
		return
	}
	for {
		if !a.producer.Ready() {
			a.rxStalled.Store(true)
			return
		}
		b, ok := a.hw.Rx.ReadByte()
		if !ok {
			return
		}
		if err := a.producer.Enqueue(b); errors.Is(err, spsc.ErrFull) {
			a.logRes.Lock(c, func(l **logger.Logger) { (*l).Error("no space, byte 0x%02x dropped", b) })
		}
	}
}

// onIdle разбирает накопленные байты команд.
func (a *App) onIdle(c *sched.Context) {
	for {
		b, ok := a.consumer.Dequeue()
		if !ok {
			return
		}
		if a.rxStalled.Swap(false) {
			c.Pend(a.rxTask)
		}
		req := command.RequestNone
		a.control.Lock(c, func(v *control.Control) { req = a.cmd.Feed(b, v) })
		if req != command.RequestNone {
			a.handle(c, req)
		}
	}
}

func (a *App) handle(c *sched.Context, req command.Request) {
	a.logRes.Lock(c, func(l **logger.Logger) { (*l).Info("request: %s", req) })
	switch req {
	case command.RequestStatus:
		var ctl control.Control
		var st control.State
		a.control.Lock(c, func(v *control.Control) { ctl = *v })
		a.snapshot.Lock(c, func(s *control.State) { st = *s })
		tel := a.tel
		if tel.Kind() == telemetry.KindNone {
			tel = telemetry.Words{}
		}
		a.slot.Lock(c, func(s *link.Slot) {
			if ch := s.Take(); ch != nil {
				s.Replace(telemetry.SendStatus(ch, tel, &ctl, &st))
			}
		})
	case command.RequestBoot:
		if a.hw.Boot == nil {
			return
		}
		if err := a.hw.Boot.ToBootloader(); err != nil {
			a.logRes.Lock(c, func(l **logger.Logger) { (*l).Error("bootloader: %v", err) })
		}
	case command.RequestReset:
		if a.hw.Boot != nil {
			a.hw.Boot.SystemReset()
		}
	}
}
