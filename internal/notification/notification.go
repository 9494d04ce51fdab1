package notification

import (
	"context"
	"log/slog"
	"sync"
)

// Severity classifies a notification for presentation.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Message keys understood by the UI translation catalogue.
const (
	KeyBuySuccess  = "notifications.buySuccess"
	KeySellSuccess = "notifications.sellSuccess"
	KeyLoanTaken   = "notifications.loanSuccess"
	KeyLoanRepaid  = "notifications.repaySuccess"
	KeyLoanDueSoon = "notifications.loanDueSoon"
	KeyLoanPenalty = "notifications.loanOverduePenalty"
)

// Notification is the single user-facing outcome of an engine operation.
type Notification struct {
	MessageKey string         `json:"message_key"`
	Payload    map[string]any `json:"payload,omitempty"`
	Severity   Severity       `json:"severity"`
}

// Success builds a success notification.
func Success(key string, payload map[string]any) *Notification {
	return &Notification{MessageKey: key, Payload: payload, Severity: SeveritySuccess}
}

// Warning builds a warning notification.
func Warning(key string, payload map[string]any) *Notification {
	return &Notification{MessageKey: key, Payload: payload, Severity: SeverityWarning}
}

// Error builds an error notification.
func Error(key string, payload map[string]any) *Notification {
	return &Notification{MessageKey: key, Payload: payload, Severity: SeverityError}
}

// Slot holds the most recent notification. The zero value is ready to use.
type Slot struct {
	mu      sync.RWMutex
	current *Notification
}

// Set replaces the current notification.
func (s *Slot) Set(n *Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = n
}

// Current returns a copy of the current notification, or nil.
func (s *Slot) Current() *Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	n := *s.current
	return &n
}

// Clear empties the slot. Clearing an empty slot is a no-op.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the notification to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, msg Notification) error {
	if n == nil || n.logger == nil {
		return nil
	}
	level := slog.LevelInfo
	switch msg.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	n.logger.Log(context.Background(), level, "notification", "key", msg.MessageKey, "severity", string(msg.Severity), "payload", msg.Payload)
	return nil
}
