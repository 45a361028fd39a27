// Package logger holds the process-wide zap logger. Output goes to stdout in
// console form and to a rotated JSON file.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "realtime.log"

// Log is the global logger. Use L() from code that may run before Initialize.
var Log *zap.Logger

// Initialize configures Log. level is one of debug, info, warn or error and
// defaults to info; file defaults to realtime.log.
func Initialize(level string, file string) error {
	if file == "" {
		file = defaultLogFile
	}
	if level == "" {
		level = "info"
	}

	Log = build(parseLogLevel(level), os.Stdout, &lumberjack.Logger{
		Filename:   file,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   true,
	})
	Log.Info("Logger initialized", zap.String("level", level), zap.String("file", file))
	return nil
}

func build(level zapcore.Level, console, file io.Writer) *zap.Logger {
	jsonConfig := zap.NewProductionEncoderConfig()
	jsonConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(console), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(file), level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Close flushes buffered entries.
func Close() error {
	if Log == nil {
		return nil
	}
	return Log.Sync()
}

func parseLogLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// L returns the global logger, or a no-op logger when Initialize was never called.
func L() *zap.Logger {
	if Log == nil {
		return zap.NewNop()
	}
	return Log
}

// ErrorWithFields logs msg at error level with err attached when non-nil.
func ErrorWithFields(msg string, err error, fields ...zap.Field) {
	L().Error(msg, withErr(err, fields)...)
}

func WarnWithFields(msg string, err error, fields ...zap.Field) {
	L().Warn(msg, withErr(err, fields)...)
}

// FatalWithFields logs and exits the process.
func FatalWithFields(msg string, err error) {
	L().Fatal(msg, withErr(err, nil)...)
}

func withErr(err error, fields []zap.Field) []zap.Field {
	if err == nil {
		return fields
	}
	return append(fields, zap.Error(err))
}
