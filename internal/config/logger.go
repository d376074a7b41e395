package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger(w io.Writer) (*log.Logger, error) {
	level := log.InfoLevel
	if strings.TrimSpace(c.LogLevel) != "" {
		parsed, err := log.ParseLevel(strings.ToLower(c.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	formatter := log.TextFormatter
	switch strings.ToLower(c.LogFormat) {
	case "", "text":
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          "learnstudio",
	}), nil
}
