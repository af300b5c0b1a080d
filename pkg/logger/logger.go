// Package logger is a printf-style facade over a zap SugaredLogger. Every
// entry carries the process id; Entry adds request scoped fields such as
// the admin being listed.
package logger

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
)

var Logger *zap.SugaredLogger

// Init builds the package logger. Development mode logs at debug level to
// stderr, production mode uses zap's JSON production config.
func Init(dev bool) {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	UpdateLogger(&cfg)
}

// UpdateLogger replaces the package logger. A nil config writes production
// JSON logs to changelist.log.
func UpdateLogger(config *zap.Config) {
	if config == nil {
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"changelist.log"}
		config = &cfg
	}

	built, err := config.Build()
	if err != nil {
		log.Print(err)
		return
	}
	SetLogger(built)
	Info("ChangeList logger initialized")
}

// SetLogger installs an already built zap logger.
func SetLogger(l *zap.Logger) {
	Logger = l.Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Entry logs with a fixed set of key/value fields.
type Entry struct {
	fields []interface{}
}

// With returns an Entry carrying keysAndValues on every message.
func With(keysAndValues ...interface{}) *Entry {
	return &Entry{fields: keysAndValues}
}

func (e *Entry) With(keysAndValues ...interface{}) *Entry {
	fields := make([]interface{}, 0, len(e.fields)+len(keysAndValues))
	fields = append(fields, e.fields...)
	return &Entry{fields: append(fields, keysAndValues...)}
}

func (e *Entry) log(emit func(*zap.SugaredLogger, string, ...interface{}), template string, args []interface{}) {
	msg := fmt.Sprintf(template, args...)
	if Logger == nil {
		if len(e.fields) > 0 {
			msg = fmt.Sprint(msg, " ", e.fields)
		}
		log.Print(msg)
		return
	}
	emit(Logger, msg, append([]interface{}{"process_id", os.Getpid()}, e.fields...)...)
}

func (e *Entry) Info(template string, args ...interface{}) {
	e.log((*zap.SugaredLogger).Infow, template, args)
}

func (e *Entry) Warn(template string, args ...interface{}) {
	e.log((*zap.SugaredLogger).Warnw, template, args)
}

func (e *Entry) Error(template string, args ...interface{}) {
	e.log((*zap.SugaredLogger).Errorw, template, args)
}

func (e *Entry) Debug(template string, args ...interface{}) {
	e.log((*zap.SugaredLogger).Debugw, template, args)
}

var root = &Entry{}

func Info(template string, args ...interface{}) {
	root.Info(template, args...)
}

func Warn(template string, args ...interface{}) {
	root.Warn(template, args...)
}

func Error(template string, args ...interface{}) {
	root.Error(template, args...)
}

func Debug(template string, args ...interface{}) {
	root.Debug(template, args...)
}
