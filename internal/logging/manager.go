package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LoggerManager хранит логгеры компонентов: у каждого свой файл в logDir
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{
			loggers: make(map[string]*Logger),
		}
	})
	return globalManager
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	if logger, exists := lm.loggers[component]; exists {
		lm.mu.RUnlock()
		return logger, nil
	}
	lm.mu.RUnlock()

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if logger, exists := lm.loggers[component]; exists {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер или, если файл не создать, логгер в stdout
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		return &Logger{
			component:       component,
			consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
			minConsoleLevel: INFO,
			minFileLevel:    ERROR,
		}
	}
	return logger
}

// SetLogLevel меняет уровни уже созданного логгера компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	logger, exists := lm.loggers[component]
	lm.mu.RUnlock()

	if !exists {
		return fmt.Errorf("логгер %s не создан", component)
	}

	logger.SetLevels(consoleLevel, fileLevel)
	return nil
}

// CloseAll закрывает все логгеры компонентов
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("закрытие логгера %s: %w", component, err)
		}
	}

	lm.loggers = make(map[string]*Logger)
	return lastErr
}

// GetHTTPLogger логгер запросов отладочного API (logs/http_*.log)
func GetHTTPLogger() *Logger {
	return GetLoggerManager().MustGetLogger("http")
}
