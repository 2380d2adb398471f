package server

import (
	"strings"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor/levels"
	"github.com/ternarybob/arbor/models"

	"github.com/ternarybob/specto/internal/common"
)

const (
	// Buffer size for the websocket log queue. Batches beyond this are
	// dropped rather than blocking the logging caller.
	defaultLogBufferSize = 100
)

// excluded log messages that would feed back into the broadcast loop
var defaultExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"HTTP response",
}

// LogMirror consumes arbor's context channel and mirrors matching entries
// to websocket clients, so a browser watching a run sees the same lines the
// process logs. Attach its Channel to the logger with SetChannel.
type LogMirror struct {
	hub             *Hub
	channel         chan []models.LogEvent
	minLevel        levels.LogLevel
	excludePatterns []string
	done            chan struct{}
}

// NewLogMirror creates and starts the mirror.
func NewLogMirror(hub *Hub, wsConfig *common.WSConfig) *LogMirror {
	minLevel := levels.InfoLevel
	if wsConfig != nil {
		minLevel = parseLogLevel(wsConfig.MinLevel)
	}

	m := &LogMirror{
		hub:             hub,
		channel:         make(chan []models.LogEvent, defaultLogBufferSize),
		minLevel:        minLevel,
		excludePatterns: defaultExcludePatterns,
		done:            make(chan struct{}),
	}
	go m.consume()
	return m
}

// Channel is the arbor log batch channel to register with SetChannel.
func (m *LogMirror) Channel() chan []models.LogEvent {
	return m.channel
}

func (m *LogMirror) consume() {
	defer close(m.done)
	for batch := range m.channel {
		for _, entry := range batch {
			m.forward(entry)
		}
	}
}

func (m *LogMirror) forward(entry models.LogEvent) {
	arborLevel := plogToArborLevel(entry.Level)
	if arborLevel < m.minLevel {
		return
	}

	for _, pattern := range m.excludePatterns {
		if strings.Contains(entry.Message, pattern) {
			return
		}
	}

	m.hub.BroadcastLog(LogEntry{
		Timestamp: entry.Timestamp.Format("15:04:05"),
		Level:     mapLevel(arborLevel),
		Message:   entry.Message,
	})
}

// Close stops the mirror after draining buffered batches.
func (m *LogMirror) Close() {
	close(m.channel)
	<-m.done
}

// plogToArborLevel converts phuslu/log.Level to arbor levels.LogLevel
func plogToArborLevel(level plog.Level) levels.LogLevel {
	switch level {
	case plog.ErrorLevel:
		return levels.ErrorLevel
	case plog.WarnLevel:
		return levels.WarnLevel
	case plog.InfoLevel:
		return levels.InfoLevel
	case plog.DebugLevel:
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// parseLogLevel converts string log level to arbor levels.LogLevel
func parseLogLevel(level string) levels.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return levels.ErrorLevel
	case "warn", "warning":
		return levels.WarnLevel
	case "info":
		return levels.InfoLevel
	case "debug":
		return levels.DebugLevel
	default:
		return levels.InfoLevel
	}
}

// mapLevel maps arbor log levels to UI strings
func mapLevel(level levels.LogLevel) string {
	switch level {
	case levels.ErrorLevel:
		return "error"
	case levels.WarnLevel:
		return "warn"
	case levels.InfoLevel:
		return "info"
	case levels.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
