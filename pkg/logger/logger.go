package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger is a thin wrapper over zap's sugared logger so the rest of the
// code takes a single concrete type.
type Logger struct {
	sugar *zap.SugaredLogger
}

func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: zl.Sugar()}, nil
}

// NewNop returns a logger that discards everything; handy in tests.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() { _ = l.sugar.Sync() }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.sugar.Fatalw(msg, kv...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(kv...)}
}
