package log

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level   string          `mapstructure:"level" yaml:"level"`
	Pattern string          `mapstructure:"pattern" yaml:"pattern"`
	Time    string          `mapstructure:"time" yaml:"time"`
	File    FileAppenderOpt `mapstructure:"file" yaml:"file"`
}

// DefaultConfig logs info and above to stdout only.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:   "info",
		Pattern: DefaultPattern,
		Time:    DefaultTimeLayout,
	}
}
