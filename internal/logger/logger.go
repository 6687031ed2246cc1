package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger writes tagged, colourised lines: "<time> LEVEL [TAG] message".
type Logger struct {
	out   io.Writer
	level Level
	mu    sync.Mutex

	debug *color.Color
	info  *color.Color
	warn  *color.Color
	err   *color.Color
	tag   *color.Color
}

func NewLogger() *Logger {
	level := LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = LevelDebug
	case "warn", "warning":
		level = LevelWarn
	case "error":
		level = LevelError
	}
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewLoggerWithWriter is used by tests to silence or capture output.
func NewLoggerWithWriter(out io.Writer, level Level) *Logger {
	return &Logger{
		out:   out,
		level: level,
		debug: color.New(color.FgHiBlack),
		info:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		err:   color.New(color.FgRed, color.Bold),
		tag:   color.New(color.FgCyan),
	}
}

func (l *Logger) write(level Level, c *color.Color, name, tag, msg string) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s %s %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		c.Sprintf("%-5s", name),
		l.tag.Sprintf("[%s]", tag),
		msg,
	)
}

func (l *Logger) Debug(tag, msg string) { l.write(LevelDebug, l.debug, "DEBUG", tag, msg) }
func (l *Logger) Info(tag, msg string)  { l.write(LevelInfo, l.info, "INFO", tag, msg) }
func (l *Logger) Warn(tag, msg string)  { l.write(LevelWarn, l.warn, "WARN", tag, msg) }
func (l *Logger) Error(tag, msg string) { l.write(LevelError, l.err, "ERROR", tag, msg) }

func (l *Logger) Fatal(tag, msg string) {
	l.write(LevelError, l.err, "FATAL", tag, msg)
	os.Exit(1)
}

func (l *Logger) LogProcess(step, msg string) {
	l.Info("PROCESS:"+step, msg)
}

func (l *Logger) LogDatabase(op, driver, msg string) {
	l.Debug("DB:"+driver, fmt.Sprintf("%s %s", op, msg))
}

func (l *Logger) LogKafka(op, topic, msg string) {
	l.Debug("KAFKA:"+topic, fmt.Sprintf("%s %s", op, msg))
}

func (l *Logger) LogPayment(op, reference, msg string) {
	l.Info("PAYMENT:"+op, fmt.Sprintf("ref=%s %s", reference, msg))
}

func (l *Logger) LogTicket(op, ticketID, msg string) {
	l.Info("TICKET:"+op, fmt.Sprintf("id=%s %s", ticketID, msg))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogSecurity(event, msg string) {
	l.Warn("SECURITY:"+event, msg)
}

func (l *Logger) Close() {
	if f, ok := l.out.(*os.File); ok {
		_ = f.Sync()
	}
}
