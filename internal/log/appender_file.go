package log

import "gopkg.in/natefinch/lumberjack.v2"

// FileAppenderOpt configures the rotating file appender.
type FileAppenderOpt struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // files
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) *MultiWriter {
	writer := &lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
	}
	m.writers = append(m.writers, writer)
	return m
}
