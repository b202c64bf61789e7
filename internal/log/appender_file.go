package log

import (
	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/shipswitch/internal/config"
)

// AddFileAppender adds a size-rotated log file.
func (m *MultiWriter) AddFileAppender(fc config.FileOutputConfig) *MultiWriter {
	writer := &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,  // megabytes
		MaxBackups: fc.Rotation.MaxBackups, // number of backups
		MaxAge:     fc.Rotation.MaxAgeDays, // days
		Compress:   fc.Rotation.Compress,   // compress the backups
	}
	return m.own(writer)
}
