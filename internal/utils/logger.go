package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger = newLogger("info", false)

// Logger возвращает общий логгер процесса
func Logger() *logrus.Logger {
	return logger
}

// InitLogger настраивает общий логгер: JSON в production, текст для разработки
func InitLogger(level string, production bool) *logrus.Logger {
	logger = newLogger(level, production)
	return logger
}

func newLogger(level string, production bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if production {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// LogError пишет структурированную ошибку с указанием модуля и функции
func LogError(module, funcName, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   module,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	if err == nil {
		logger.WithFields(fields).Error(context)
		return
	}
	logger.WithFields(fields).Error(err.Error())
}
