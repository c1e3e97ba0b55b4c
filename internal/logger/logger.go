// Package logger — единый вывод логов fc-core с префиксом, уровнем и учётом quiet.
package logger

import (
	"io"
	"log"
	"os"
	"runtime"
	"strings"
)

// Level — уровень подробности логов.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// ParseLevel разбирает уровень из конфига: debug, info, error. Пусто или неизвестно — info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Quiet при true отключает информационные сообщения (Info, Debug); Error выводится всегда.
var Quiet bool

// Logger — логгер с префиксом и минимальным уровнем. В планировщике это разделяемый ресурс Log.
type Logger struct {
	prefix string
	level  Level
	out    *log.Logger
}

// New создаёт логгер, пишущий в w с префиксом prefix.
func New(w io.Writer, prefix string, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		prefix: prefix,
		level:  level,
		out:    log.New(w, "", log.LstdFlags|log.Lmicroseconds),
	}
}

var std = New(os.Stderr, "fc-core: ", LevelInfo)

// Default возвращает глобальный логгер пакета.
func Default() *Logger { return std }

// SetLevel меняет уровень глобального логгера.
func SetLevel(l Level) { std.level = l }

// Level возвращает текущий минимальный уровень.
func (l *Logger) Level() Level { return l.level }

// Debug выводит отладочное сообщение (только при уровне debug и Quiet == false).
func (l *Logger) Debug(format string, args ...interface{}) {
	if Quiet || l.level > LevelDebug {
		return
	}
	l.out.Printf(l.prefix+"debug: "+format, args...)
}

// Info выводит сообщение, если Quiet == false.
func (l *Logger) Info(format string, args ...interface{}) {
	if Quiet || l.level > LevelInfo {
		return
	}
	l.out.Printf(l.prefix+format, args...)
}

// Error выводит сообщение об ошибке всегда.
func (l *Logger) Error(format string, args ...interface{}) {
	l.out.Printf(l.prefix+"error: "+format, args...)
}

// Info выводит сообщение глобальным логгером.
func Info(format string, args ...interface{}) { std.Info(format, args...) }

// Debug выводит отладочное сообщение глобальным логгером.
func Debug(format string, args ...interface{}) { std.Debug(format, args...) }

// Error выводит ошибку глобальным логгером.
func Error(format string, args ...interface{}) { std.Error(format, args...) }

// exit подменяется в тестах.
var exit = os.Exit

// Abort — путь фатальной ошибки: печатает сообщение паники и место, где она произошла, и завершает процесс.
// Восстановления нет, нужен внешний перезапуск. Вызывать из defer: defer func() { logger.Abort(recover()) }().
func Abort(recovered interface{}) {
	if recovered == nil {
		return
	}
	file, line := panicLocation()
	if file != "" {
		std.Error("panic in file '%s' at line %d: %v", file, line, recovered)
	} else {
		std.Error("panic: %v", recovered)
	}
	exit(2)
}

// panicLocation ищет первый кадр стека после runtime.gopanic.
func panicLocation() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	seenPanic := false
	for {
		fr, more := frames.Next()
		if seenPanic && !strings.HasPrefix(fr.Function, "runtime.") {
			return fr.File, fr.Line
		}
		if fr.Function == "runtime.gopanic" {
			seenPanic = true
		}
		if !more {
			return "", 0
		}
	}
}
