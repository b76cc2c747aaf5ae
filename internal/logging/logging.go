// Package logging provides structured JSON logging on top of log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// NewLogger creates a JSON logger writing to stdout.
// Supported levels: debug, info, warn, error.
func NewLogger(level string) *slog.Logger {
	return New(os.Stdout, level)
}

func New(w io.Writer, level string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

func WithChatID(logger *slog.Logger, chatID int64) *slog.Logger {
	return logger.With("chat_id", chatID)
}

// SanitizeToken masks a token for safe logging.
// Shows first 4 and last 4 characters only.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;&]+)`)
	botURLRE      = regexp.MustCompile(`/bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Redact removes the given secrets and anything that looks like a credential
// (bearer tokens, api_key fields, Telegram bot URLs) from s.
func Redact(s string, secrets ...string) string {
	if s == "" {
		return s
	}
	out := s
	for _, sec := range secrets {
		if sec != "" {
			out = strings.ReplaceAll(out, sec, "[REDACTED]")
		}
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = botURLRE.ReplaceAllString(out, "/bot[REDACTED]")
	return out
}
