package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel 解析日志级别，未知值回退为 info
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NewLogger 创建服务进程的 Logger
// level: "debug", "info", "warn", "error" (默认: "info")
// format: "json" 或 "console"/"text" (默认: "json")
// serviceName: added to every entry as service_name when non-empty
func NewLogger(level string, format string, serviceName string) (*zap.Logger, error) {
	var config zap.Config
	switch format {
	case "console", "text":
		config = zap.NewDevelopmentConfig()
	default:
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	base, err := config.Build()
	if err != nil {
		return nil, err
	}

	if serviceName != "" {
		base = base.With(zap.String("service_name", serviceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		base = base.With(zap.String("hostname", hostname))
	}
	return base, nil
}

// NewCLILogger writes warnings and errors to stderr so command output on stdout stays parseable.
func NewCLILogger() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapcore.WarnLevel,
	)
	return zap.New(core)
}
