// Package logger provides the process-wide structured logger used by every
// other package. It mirrors the teacher's console+rotating-file tee: a
// zap.Logger fanned out to stdout and a lumberjack-rotated file.
package logger

import (
	"log"
	"os"

	"github.com/natefinch/lumberjack"
	"github.com/petermattis/goid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
)

func newEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		MessageKey:       "message",
		LevelKey:         "level",
		TimeKey:          "time",
		CallerKey:        "caller",
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// Init wires the global Logger. logfile may be empty to skip the file sink
// (used by tests).
func Init(level Level, logfile string, maxSizeMB, maxBackups, maxAgeDays int) {
	encoder := newEncoder()
	consoleCore := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapcore.Level(level))
	cores := []zapcore.Core{consoleCore}
	if logfile != "" {
		lj := &lumberjack.Logger{
			Filename:   logfile,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(lj), zapcore.Level(level)))
	}
	Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

func Sync() {
	if Logger != nil {
		if err := Logger.Sync(); err != nil {
			log.Printf("failed to sync logger: %v", err)
		}
	}
}

// GID tags a log line with the calling goroutine id, so a reader can tell
// the planner flow apart from the simulated step-generator flow.
func GID() uint64 { return uint64(goid.Get()) }

func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Infof(format, args...)
	}
}

func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Debugf(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Sugar().Errorf(format, args...)
	}
}
