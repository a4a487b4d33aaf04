package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level  string
	Format string
}

// NewLogger builds the process logger. Callers usually install it with slog.SetDefault.
func NewLogger(w io.Writer, c LogConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", c.Level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Format) {
	case LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case LogFormatText, "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", c.Format)
	}
}

// GinLogger logs one line per HTTP request. Server errors are logged at error level.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		lvl := slog.LevelInfo
		if status >= 500 {
			lvl = slog.LevelError
		}

		slog.Log(c.Request.Context(), lvl, "http: request handled",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		)
	}
}
