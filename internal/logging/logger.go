package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из конфигурации ("debug", "INFO"...).
// Неизвестная строка даёт INFO.
func ParseLevel(s string) LogLevel {
	switch s {
	case "trace", "TRACE":
		return TRACE
	case "debug", "DEBUG":
		return DEBUG
	case "warn", "WARN", "warning":
		return WARN
	case "error", "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger пишет все уровни от minFileLevel в файл и от minConsoleLevel в консоль
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
	mu              sync.Mutex
}

var (
	logDir   = "logs"
	logDirMu sync.RWMutex

	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// SetLogDir меняет каталог для файлов логов (по умолчанию "logs")
func SetLogDir(dir string) {
	logDirMu.Lock()
	logDir = dir
	logDirMu.Unlock()
}

// NewLogger создаёт логгер компонента с файлом <logDir>/<component>_<timestamp>.log
func NewLogger(component string) (*Logger, error) {
	logDirMu.RLock()
	dir := logDir
	logDirMu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	return &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		fileLogger:      log.New(file, "", log.LstdFlags),
		file:            file,
		minConsoleLevel: INFO,
		minFileLevel:    TRACE,
	}, nil
}

// NewWriterLogger создаёт логгер без файла, пишущий в w (тесты, инструменты CLI)
func NewWriterLogger(component string, w io.Writer, minLevel LogLevel) *Logger {
	return &Logger{
		component:       component,
		consoleLogger:   log.New(w, "", log.LstdFlags),
		minConsoleLevel: minLevel,
		minFileLevel:    ERROR,
	}
}

// Close закрывает файл логгера
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// SetLevels задаёт минимальные уровни для консоли и файла
func (l *Logger) SetLevels(consoleLevel, fileLevel LogLevel) {
	l.mu.Lock()
	l.minConsoleLevel = consoleLevel
	l.minFileLevel = fileLevel
	l.mu.Unlock()
}

// Component возвращает имя компонента
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// log внутренняя функция для логирования
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

// InitDefaultLogger инициализирует логгер по умолчанию для пакетных функций
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}
	SetDefaultLogger(logger)
	return nil
}

// SetDefaultLogger подменяет логгер по умолчанию (nil отключает пакетные функции)
func SetDefaultLogger(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// CloseDefaultLogger закрывает логгер по умолчанию
func CloseDefaultLogger() {
	defaultMu.Lock()
	l := defaultLogger
	defaultLogger = nil
	defaultMu.Unlock()

	if l != nil {
		l.Close()
	}
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Пакетные функции. До InitDefaultLogger ничего не пишут.

func Trace(format string, args ...interface{}) { current().log(TRACE, format, args...) }
func Debug(format string, args ...interface{}) { current().log(DEBUG, format, args...) }
func Info(format string, args ...interface{})  { current().log(INFO, format, args...) }
func Warn(format string, args ...interface{})  { current().log(WARN, format, args...) }
func Error(format string, args ...interface{}) { current().log(ERROR, format, args...) }

// LogEntityMovement логирует шаг сущности
func LogEntityMovement(entity string, fromX, fromY, toX, toY float64, layer int, reason string) {
	Trace("Entity %s movement: (%.2f,%.2f) -> (%.2f,%.2f) layer:%d reason:%s",
		entity, fromX, fromY, toX, toY, layer, reason)
}
