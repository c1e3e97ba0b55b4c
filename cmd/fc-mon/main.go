// fc-mon — наземная станция: печатает телеметрию fc-core, раздаёт её по websocket,
// пишет в поток Redis и отправляет команды, введённые в stdin.
//
// Использование:
//
//	fc-mon -list
//	fc-mon -port /dev/ttyUSB0 -listen :8080 -redis localhost:6379
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiwa/fc-core/internal/config"
	"github.com/shiwa/fc-core/internal/groundstation"
	"github.com/shiwa/fc-core/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию fc-core.yml)")
	list := flag.Bool("list", false, "показать последовательные порты и выйти")
	port := flag.String("port", "", "порт канала связи (переопределяет monitor.port)")
	baud := flag.Int("baud", 0, "скорость порта (переопределяет monitor.baud)")
	listen := flag.String("listen", "", "адрес websocket, например :8080 (переопределяет monitor.listen)")
	redisAddr := flag.String("redis", "", "адрес Redis для записи кадров (переопределяет monitor.redis_addr)")
	quiet := flag.Bool("quiet", false, "не печатать кадры")
	flag.Parse()

	if *list {
		ports, err := groundstation.ListPorts()
		if err != nil {
			log.Fatal(err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg := config.Default()
	path := *configPath
	if path == "" {
		path = "fc-core.yml"
	}
	if _, err := os.Stat(path); err == nil {
		c, err := config.Load(path)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = c
	} else if *configPath != "" {
		log.Fatalf("config: %v", err)
	}
	mon := cfg.Monitor
	if *port != "" {
		mon.Port = *port
	}
	if *baud != 0 {
		mon.Baud = *baud
	}
	if *listen != "" {
		mon.Listen = *listen
	}
	if *redisAddr != "" {
		mon.RedisAddr = *redisAddr
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("получен сигнал %v, завершение...", sig)
		cancel()
	}()

	p, err := groundstation.OpenPort(mon.Port, mon.Baud)
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close()

	var sinks []groundstation.Sink
	if mon.Listen != "" {
		room := groundstation.NewRoom(logger.Default())
		go room.Run(ctx)
		mux := http.NewServeMux()
		mux.Handle("/ws", room)
		srv := &http.Server{Addr: mon.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("websocket: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
		sinks = append(sinks, room)
		logger.Info("websocket on %s/ws", mon.Listen)
	}
	if mon.RedisAddr != "" {
		rs, err := groundstation.NewRedisSink(ctx, mon.RedisAddr, mon.RedisStream, mon.RedisMaxLen)
		if err != nil {
			log.Fatal(err)
		}
		defer rs.Close()
		sinks = append(sinks, rs)
		logger.Info("redis stream %s on %s", mon.RedisStream, mon.RedisAddr)
	}

	var out io.Writer = os.Stdout
	if *quiet {
		out = nil
	}
	m := groundstation.NewMonitor(p, out, logger.Default(), sinks...)
	logger.Info("session %s on %s %d baud", m.Session(), mon.Port, mon.Baud)

	go func() {
		if err := m.ForwardCommands(ctx, os.Stdin); err != nil {
			logger.Error("stdin: %v", err)
		}
	}()
	if err := m.Run(ctx); err != nil {
		logger.Error("%v", err)
	}
}
