package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig configures the process-wide structured logger.
type LogConfig struct {
	// Level is one of debug/info/warn/error/fatal (case-insensitive).
	// Empty defaults to info.
	Level string

	// Format is "json" or "text". Empty defaults to json.
	Format string

	// Development enables human-friendly stack traces and caller info.
	Development bool

	// Output is a file path to write logs to. Empty writes to stderr.
	// A path that can't be opened falls back to stderr rather than
	// failing startup.
	Output string
}

// Logger wraps zap with a sugared companion and cyclehunter-specific
// field constructors.
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func openSink(path string) zapcore.WriteSyncer {
	if path == "" {
		return zapcore.AddSync(os.Stderr)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zapcore.AddSync(os.Stderr)
	}
	return zapcore.AddSync(f)
}

// InitLogger builds a new Logger from config. It never returns nil and
// never fails startup — a bad output path falls back to stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "text") {
		if cfg.Development {
			encCfg = zap.NewDevelopmentEncoderConfig()
		}
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, openSink(cfg.Output), level)

	var opts []zap.Option
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// InitGlobalLogger builds a logger and installs it as the package
// global, returning it for convenience.
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// GetGlobalLogger returns the process-wide logger, lazily creating a
// default one (info/json/stderr) on first use.
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// SetGlobalLogger installs logger as the process-wide logger.
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// L is shorthand for GetGlobalLogger.
func L() *Logger {
	return GetGlobalLogger()
}

// With returns a child logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent scopes a logger to a named subsystem (e.g. "evaluator").
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithExchange scopes a logger to a venue name.
func (l *Logger) WithExchange(name string) *Logger {
	return l.With(Exchange(name))
}

// WithSymbol scopes a logger to a pair symbol.
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// WithPairID scopes a logger to a numeric identifier (cycle id, pair id).
func (l *Logger) WithPairID(id int) *Logger {
	return l.With(PairID(id))
}

// Sugar returns the sugared logger for printf-style calls.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// ============================================================
// Field constructors
// ============================================================

func Exchange(name string) zap.Field  { return zap.String("exchange", name) }
func Symbol(symbol string) zap.Field  { return zap.String("symbol", symbol) }
func PairID(id int) zap.Field         { return zap.Int("pair_id", id) }
func OrderID(id string) zap.Field     { return zap.String("order_id", id) }
func Price(p float64) zap.Field       { return zap.Float64("price", p) }
func Volume(v float64) zap.Field      { return zap.Float64("volume", v) }
func Spread(s float64) zap.Field      { return zap.Float64("spread", s) }
func Profit(p float64) zap.Field      { return zap.Float64("profit_pct", p) }
func PNL(p float64) zap.Field         { return zap.Float64("pnl", p) }
func Side(side string) zap.Field      { return zap.String("side", side) }
func State(state string) zap.Field    { return zap.String("state", state) }
func Latency(ms float64) zap.Field    { return zap.Float64("latency_ms", ms) }
func RequestID(id string) zap.Field   { return zap.String("request_id", id) }
func UserID(id int) zap.Field         { return zap.Int("user_id", id) }
func Component(name string) zap.Field { return zap.String("component", name) }

// Re-exported generic field constructors so callers need only import
// pkg/utils instead of go.uber.org/zap directly.
func String(key, value string) zap.Field      { return zap.String(key, value) }
func Int(key string, value int) zap.Field     { return zap.Int(key, value) }
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }
func Float64(key string, value float64) zap.Field {
	return zap.Float64(key, value)
}
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }
func Err(err error) zap.Field               { return zap.Error(err) }
func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

// ============================================================
// Global logging functions
// ============================================================

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { GetGlobalLogger().Fatal(msg, fields...) }

func Debugf(format string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetGlobalLogger().sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetGlobalLogger().sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(format, args...) }

// fieldsToInterface flattens zap fields into alternating key/value
// pairs, preserving field order, for callers that need to hand fields
// to a sugared logger.
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)
		for k, v := range enc.Fields {
			out = append(out, k, v)
		}
	}
	return out
}
