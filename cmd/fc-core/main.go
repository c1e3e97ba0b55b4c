// fc-core — контур стабилизации мультикоптера на Linux одноплатнике или в симуляции.
//
// Использование:
//
//	fc-core -config fc-core.yml            — запуск контура
//	fc-core -sim                           — симуляция без оборудования (датчик sim, без моторов и канала)
//	fc-core -port /dev/ttyAMA0 -strategy kalman
//
// Команды по каналу связи: tmon, tmoff, pk=, ik=, dk=, pipk=, rpk=, ypk=, tthurst=, pt=, status, boot, reset.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shiwa/fc-core/internal/bootloader"
	"github.com/shiwa/fc-core/internal/config"
	"github.com/shiwa/fc-core/internal/logger"
	"github.com/shiwa/fc-core/pkg/flight"
)

func main() {
	defer func() { logger.Abort(recover()) }()

	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию fc-core.yml)")
	port := flag.String("port", "", "последовательный порт канала связи (переопределяет config)")
	baud := flag.Int("baud", 0, "скорость порта (переопределяет config)")
	strategy := flag.String("strategy", "", "оценщик ориентации: dcm или kalman (переопределяет config)")
	sim := flag.Bool("sim", false, "симуляция: датчик sim, без моторов и без канала, если port не задан")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if *sim {
		cfg.IMU.Driver = "sim"
		cfg.Airframe = "none"
		cfg.Device.Port = ""
	}
	if *port != "" {
		cfg.Device.Port = *port
	}
	if *baud != 0 {
		cfg.Device.Baud = *baud
	}
	if *strategy != "" {
		cfg.Estimator.Strategy = *strategy
	}
	logger.Quiet = *quiet
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	restart, err := run(cfg)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if restart {
		logger.Info("system reset")
		if err := bootloader.Restart(); err != nil {
			logger.Error("restart: %v", err)
			os.Exit(1)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "fc-core.yml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return config.Load(path)
}

// run выполняет контур до сигнала или сброса системы; true — нужен перезапуск процесса.
func run(cfg *config.Config) (bool, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("получен сигнал %v, завершение...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	boot := flight.NewBootloader(cfg, cancel)
	entered, err := boot.CheckRequest()
	if entered {
		if errors.Is(err, bootloader.ErrNoCommand) {
			return false, errors.New("bootloader requested, but bootloader.command is not configured; flag cleared")
		}
		return false, err
	}
	if err != nil {
		logger.Error("bootloader flag: %v", err)
	}

	hw, err := flight.OpenHardware(cfg, boot, logger.Default())
	if err != nil {
		return false, err
	}
	defer hw.Close()

	app, err := flight.New(cfg, hw, logger.Default())
	if err != nil {
		return false, err
	}
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return false, err
	}
	return boot.ResetRequested(), nil
}
