package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. Console output goes to stdout (errors to
// stderr); when file is set a JSON copy is written to a rotated log file.
func New(level, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	highPriority := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel && l >= lvl
	})
	lowPriority := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l < zapcore.ErrorLevel && l >= lvl
	})

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCfg := encCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), highPriority),
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), lowPriority),
	}
	if file != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotatingFile(file)),
			zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= lvl }),
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func rotatingFile(name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   name,
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		LocalTime:  true,
	}
}
