package ccfl

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

//Logger returns the package logger. When CCF_LOG_FILE is set the log is
//mirrored to that file as JSON in addition to stdout.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		logFile := os.Getenv("CCF_LOG_FILE")
		if logFile == "" {
			l, _ := zap.NewProduction()
			logger = l
			return
		}
		_ = os.MkdirAll(filepath.Dir(logFile), 0o755)
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			l, _ := zap.NewProduction()
			logger = l
			return
		}
		encCfg := zap.NewProductionEncoderConfig()
		enc := zapcore.NewJSONEncoder(encCfg)
		lvl := zapcore.InfoLevel
		fileCore := zapcore.NewCore(enc, zapcore.AddSync(f), lvl)
		consoleCore := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), lvl)
		logger = zap.New(zapcore.NewTee(fileCore, consoleCore))
	})
	return logger
}
