package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogFile    = "splitter.log"
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 7
)

// LogOption 日志初始化参数
type LogOption struct {
	Format   string // console / json
	LogDir   string // 为空时只输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩滚动后的旧文件
}

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
)

// Init 根据配置构建全局 logger，可重复调用（后一次覆盖前一次）
func Init(opt LogOption) error {
	level := zapcore.InfoLevel
	if opt.Level != "" {
		parsed, err := zapcore.ParseLevel(opt.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opt.Level, err)
		}
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(opt.Format) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return fmt.Errorf("invalid log format %q", opt.Format)
	}

	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, defaultLogFile),
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   opt.Compress,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

// SetLogger 替换全局 logger（测试中可注入 zaptest/observer）
func SetLogger(l *zap.Logger) {
	mu.Lock()
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	mu.Unlock()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debugf(format string, args ...any) { get().Debugf(format, args...) }
func Infof(format string, args ...any)  { get().Infof(format, args...) }
func Warnf(format string, args ...any)  { get().Warnf(format, args...) }
func Errorf(format string, args ...any) { get().Errorf(format, args...) }

// Sync 刷新缓冲，进程退出前调用
func Sync() {
	_ = get().Sync()
}
