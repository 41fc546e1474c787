package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

const (
	defaultLogFile   = "./logs/sequencer.log"
	defaultMaxSizeMB = 500
	defaultMaxAgeDay = 7
)

var (
	mu     sync.RWMutex
	logger = newLogger()
)

func newLogger() *log.Logger {
	var out io.Writer = &lumberjack.Logger{
		Filename: getLogFilename(),
		MaxSize:  envInt("LOGFILE_MAX_SIZE_MB", defaultMaxSizeMB),  // megabytes
		MaxAge:   envInt("LOGFILE_MAX_AGE_DAYS", defaultMaxAgeDay), // days
	}
	if os.Getenv("LOG_STDOUT") == "true" {
		out = io.MultiWriter(out, os.Stdout)
	}
	return log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

func getLogFilename() string {
	if logFile := os.Getenv("LOGFILE"); logFile != "" {
		return "./logs/" + logFile
	}
	return defaultLogFile
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("invalid value for %s=%q, using %d", name, raw, fallback)
		return fallback
	}
	return v
}

// SetOutput redirects every subsequent log line to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
}

func write(level, color, category string, content []interface{}) {
	message := fmt.Sprint(content...)
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Printf("%s[%s][%s]%s: %s", color, level, category, ColorReset, message)
}

func Info(category string, content ...interface{}) {
	write("INFO", ColorGreen, category, content)
}

func Error(category string, content ...interface{}) {
	write("ERROR", ColorRed, category, content)
}

func Warn(category string, content ...interface{}) {
	write("WARN", ColorYellow, category, content)
}

func Debug(category string, content ...interface{}) {
	write("DEBUG", ColorBlue, category, content)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}
