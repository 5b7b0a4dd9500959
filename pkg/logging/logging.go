// Package logging 构建仓库的结构化日志：滚动日志文件 + 可选的 stderr 输出。
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置 (对应 config.yaml 的 log.*)
type Config struct {
	File       string // 为空时不写文件
	Level      string // debug / info / warn / error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Verbose    bool // 同时输出到 stderr
}

// Logger 持有 slog.Logger 及其底层文件
type Logger struct {
	*slog.Logger
	file io.Closer
}

// New 按配置创建 Logger。File 与 Verbose 都未设置时日志被丢弃。
func New(cfg Config) *Logger {
	level := ParseLevel(cfg.Level)
	var handlers []slog.Handler
	var file io.Closer

	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 1),
			MaxBackups: orDefault(cfg.MaxBackups, 2),
			MaxAge:     orDefault(cfg.MaxAgeDays, 30),
		}
		file = lj
		handlers = append(handlers, slog.NewTextHandler(lj, &slog.HandlerOptions{Level: level}))
	}
	if cfg.Verbose {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	return &Logger{
		Logger: slog.New(&multiHandler{handlers: handlers}),
		file:   file,
	}
}

// Discard 不输出任何内容的 Logger
func Discard() *Logger {
	return &Logger{Logger: slog.New(&multiHandler{})}
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel 无法识别的级别按 info 处理
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// multiHandler 把记录分发给多个 handler
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
