package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// NewLogger builds an arbor logger from LoggingConfig: a console writer
// when "stdout" or "console" is requested (or when no file output is), a
// file writer under logsDir when "file" is requested, and a memory writer
// always (mirroring the teacher's cmd/quaero/main.go, which keeps a
// memory writer for its WebSocket log stream).
func NewLogger(cfg LoggingConfig, logsDir string) arbor.ILogger {
	logger := arbor.NewLogger()

	hasFile, hasConsole := false, false
	for _, o := range cfg.Output {
		switch o {
		case "file":
			hasFile = true
		case "stdout", "console":
			hasConsole = true
		}
	}

	if hasFile {
		logger = logger.WithFileWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeFile,
			FileName:         logsDir + "/argus.log",
			TimeFormat:       "15:04:05",
			MaxSize:          100 * 1024 * 1024,
			MaxBackups:       3,
			TextOutput:       cfg.Format != "json",
			DisableTimestamp: false,
		})
	}
	if hasConsole || !hasFile {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       "15:04:05",
			TextOutput:       cfg.Format != "json",
			DisableTimestamp: false,
		})
	}
	logger = logger.WithMemoryWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeMemory,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	})
	return logger.WithLevelFromString(cfg.Level)
}
