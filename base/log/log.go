package log

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type (
	Level   string
	OutType int
)

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"

	infoFileOutName  = "bidi"
	errorFileOutName = "error"
	trackFileOutName = "track"
	panicFileOutName = "panic"

	// ConsoleOut 控制台输出
	ConsoleOut OutType = 1
	// InfoFileOut 一般日志
	InfoFileOut OutType = 2
	// ErrorFileOut 错误日志
	ErrorFileOut OutType = 4
	// TrackFileOut json日志
	TrackFileOut OutType = 8

	NormalOut          = InfoFileOut | ErrorFileOut
	NormalOutWithTrack = NormalOut | TrackFileOut
)

var (
	// Builder 初始化Logger的builder，配置项比较多
	Builder      = &builder{logger: &loggerProxy{}}
	levelMapping = map[Level]zapcore.Level{
		LevelDebug: zap.DebugLevel,
		LevelInfo:  zap.InfoLevel,
		LevelWarn:  zap.WarnLevel,
		LevelError: zap.ErrorLevel,
	}
	aliasMap = map[string]OutType{
		"console": ConsoleOut,
		"file":    NormalOut,
		"track":   TrackFileOut,
	}
	proxy *loggerProxy
	once  sync.Once
)

// Config 日志配置，由config包通过viper填充
type Config struct {
	Name       string `mapstructure:"name"`
	Path       string `mapstructure:"path"`
	Level      string `mapstructure:"level"`
	Out        string `mapstructure:"out"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackUps int    `mapstructure:"max_backups"`
	Rotate     bool   `mapstructure:"rotate"`
}

// Init 按配置初始化全局logger，只有第一次调用生效
func Init(c Config) {
	Builder.Name(c.Name).
		Path(c.Path).
		Level(Level(strings.ToLower(c.Level))).
		OutType(OutTypeAlias(c.Out)).
		MaxSize(c.MaxSize).
		MaxAge(c.MaxAge).
		MaxBackUps(c.MaxBackUps).
		EnableRotate(c.Rotate).
		Build()
}

// OutTypeAlias 文本形式的输出类型，用|分割，如 "console|file"
func OutTypeAlias(name string) OutType {
	names := strings.Split(strings.ToLower(name), "|")
	var r OutType
	for _, s := range names {
		r |= aliasMap[strings.TrimSpace(s)]
	}
	return lo.Ternary(r == 0, ConsoleOut, r)
}

type config struct {
	name         string
	path         string
	level        Level
	out          OutType
	maxSize      int //单位Mb
	maxAge       int //单位天
	maxBackUps   int
	enableRotate bool
}

type loggerProxy struct {
	config
	zapLevel zap.AtomicLevel
	logger   atomic.Value
	dLogger  *zap.SugaredLogger
	nLogger  *zap.SugaredLogger
	tracker  *zap.Logger
}

// changeLogLevel debug模式下使用带caller的logger
func (lp *loggerProxy) changeLogLevel(level Level, force bool) {
	zl, ok := levelMapping[level]
	if !ok {
		zl = zap.InfoLevel
	}
	if !force && zl == lp.zapLevel.Level() {
		return
	}
	lp.zapLevel.SetLevel(zl)
	if zl == zap.DebugLevel {
		lp.logger.Store(lp.dLogger)
	} else {
		lp.logger.Store(lp.nLogger)
	}
}

func ChangeLogLevel(level Level) {
	proxy.changeLogLevel(level, false)
}

// IsDebugEnabled 是否打开了debug
func IsDebugEnabled() bool {
	return proxy.zapLevel.Enabled(zapcore.DebugLevel)
}

type builder struct {
	logger *loggerProxy
}

func (b *builder) Name(name string) *builder {
	b.logger.name = name
	return b
}

// Path 日志文件目录
func (b *builder) Path(path string) *builder {
	b.logger.path = path
	return b
}

func (b *builder) Level(level Level) *builder {
	b.logger.level = level
	return b
}

func (b *builder) OutType(out OutType) *builder {
	b.logger.out = lo.Ternary(out <= 0, ConsoleOut, out)
	return b
}

func (b *builder) MaxSize(size int) *builder {
	b.logger.maxSize = size
	return b
}

func (b *builder) MaxAge(age int) *builder {
	b.logger.maxAge = age
	return b
}

func (b *builder) MaxBackUps(count int) *builder {
	b.logger.maxBackUps = count
	return b
}

func (b *builder) EnableRotate(enable bool) *builder {
	b.logger.enableRotate = enable
	return b
}

func trackEncoderConfig() zapcore.EncoderConfig {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "@timestamp"
	encoderCfg.LevelKey = "log.level"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = timeEncoder
	return encoderCfg
}

func (b *builder) fileName(base string, suffix bool) string {
	name := b.logger.name
	if name == "" {
		return base + ".log"
	}
	return lo.Ternary(suffix, name+"-"+base, name) + ".log"
}

func (b *builder) Build() {
	once.Do(func() {
		p := b.logger
		if p.out == 0 {
			p.out = ConsoleOut
		}
		if p.out&NormalOutWithTrack > 0 {
			if p.path == "" {
				p.path = "./log"
			}
			if !exists(p.path) && os.MkdirAll(p.path, 0755) != nil {
				panic("fail to create log directory")
			}
			// panic日志默认打到stderr，重定向到文件
			if err := redirectStderr(filepath.Join(p.path, b.fileName(panicFileOutName, true))); err != nil {
				panic("fail to redirect panic log to file:" + err.Error())
			}
		}
		if p.level == "" {
			p.level = LevelDebug
		}
		p.zapLevel = zap.NewAtomicLevelAt(levelMapping[p.level])
		var trackWriter io.Writer = os.Stdout
		if p.out&TrackFileOut > 0 {
			trackWriter = b.writer(b.fileName(trackFileOutName, true))
		}
		p.tracker = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(trackEncoderConfig()),
			zapcore.AddSync(trackWriter), zap.DebugLevel))

		hp := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.WarnLevel
		})
		all := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return p.zapLevel.Enabled(lvl)
		})
		encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores := make([]zapcore.Core, 0, 3)
		if p.out&ConsoleOut > 0 {
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), all))
		}
		if p.out&InfoFileOut > 0 {
			cores = append(cores, zapcore.NewCore(encoder,
				zapcore.AddSync(b.writer(b.fileName(infoFileOutName, false))), all))
		}
		if p.out&ErrorFileOut > 0 {
			cores = append(cores, zapcore.NewCore(encoder,
				zapcore.AddSync(b.writer(b.fileName(errorFileOutName, true))), hp))
		}
		lg := zap.New(zapcore.NewTee(cores...))
		p.nLogger = lg.Sugar()
		p.dLogger = lg.WithOptions(zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
		p.changeLogLevel(p.level, true)
		proxy = p
	})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	if err != nil {
		return os.IsExist(err)
	}
	return true
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000Z"))
}

func (b *builder) writer(name string) io.Writer {
	fullName := filepath.Join(b.logger.path, name)
	if !b.logger.enableRotate {
		f, err := os.OpenFile(fullName, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			panic("fail to open log file")
		}
		return f
	}
	return &lumberjack.Logger{
		Filename:   fullName,
		MaxSize:    b.logger.maxSize,
		MaxAge:     b.logger.maxAge,
		MaxBackups: b.logger.maxBackUps,
	}
}

func current() *zap.SugaredLogger {
	return proxy.logger.Load().(*zap.SugaredLogger)
}

// Debug 调试模式下打印caller
func Debug(format string, a ...any) {
	current().Debugf(format, a...)
}

func Info(format string, a ...any) {
	current().Infof(format, a...)
}

func Warn(format string, a ...any) {
	current().Warnf(format, a...)
}

func Error(format string, a ...any) {
	current().Errorf(format, a...)
}

// Fatal 打印后退出进程
func Fatal(format string, a ...any) {
	current().Fatalf(format, a...)
}

// JsonWith 设置默认的field，如模块名称等
func JsonWith(fields ...zap.Field) *zap.Logger {
	return proxy.tracker.With(fields...)
}

// JsonInfo json格式的日志，打开TrackFileOut时在单独的文件里
func JsonInfo(msg string, fields ...zap.Field) {
	proxy.tracker.Info(msg, fields...)
}

func JsonWarn(msg string, fields ...zap.Field) {
	proxy.tracker.Warn(msg, fields...)
}

// PanicStack 从panic中恢复并打印日志
// 注意recover必须在当前函数调用
func PanicStack(prefix string, r any) {
	buf := make([]byte, 4096)
	l := runtime.Stack(buf, false)
	Error("%s: %v-> %s", prefix, r, buf[:l])
}

func Flush() {
	if proxy.dLogger != nil {
		_ = proxy.dLogger.Sync()
	}
	if proxy.nLogger != nil {
		_ = proxy.nLogger.Sync()
	}
	if proxy.tracker != nil {
		_ = proxy.tracker.Sync()
	}
}

func init() {
	// 默认仅输出到控制台，方便测试
	proxy = &loggerProxy{}
	proxy.zapLevel = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	all := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return proxy.zapLevel.Enabled(lvl)
	})
	lg := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout), all))
	proxy.nLogger = lg.Sugar()
	proxy.dLogger = lg.WithOptions(zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	proxy.tracker = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(trackEncoderConfig()),
		zapcore.AddSync(os.Stdout), zap.DebugLevel))
	proxy.logger.Store(proxy.dLogger)
}
