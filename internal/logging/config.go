package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Config holds the configuration for the logger.
type Config struct {
	// Level is the minimum level to output: debug, info, warn, error or fatal.
	Level string
	// Format is json or text.
	Format string
	// Output is stdout, stderr or a file path.
	Output string
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: string(JSONFormat),
		Output: "stderr",
	}
}

// NewLogger creates a new logger with the given configuration. An unknown
// level or format is an error.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	format := Format(strings.ToLower(cfg.Format))
	switch format {
	case "":
		format = JSONFormat
	case JSONFormat, TextFormat:
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	return NewWithFormat(level, output, format), nil
}

// ParseLevel converts a level name, in any case, to a LogLevel. The empty
// string means info.
func ParseLevel(level string) (LogLevel, error) {
	if level == "" {
		return InfoLevel, nil
	}
	l := LogLevel(strings.ToUpper(level))
	if l.rank() < 0 {
		return "", fmt.Errorf("logging: unknown level %q", level)
	}
	return l, nil
}

// openOutput returns the writer for an output destination.
func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", output, err)
		}
		return file, nil
	}
}
