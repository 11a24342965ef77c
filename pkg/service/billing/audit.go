package billing

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Audit outcomes.
const (
	OutcomeUpdated          = "updated"
	OutcomeUnchanged        = "unchanged"
	OutcomeCustomerNotFound = "customer_not_found"
	OutcomeUpdateFailed     = "update_failed"
	OutcomeInvalidPayload   = "invalid_payload"
)

type AuditEntry struct {
	EventID    string
	EventType  string
	CustomerID string
	UserID     string
	Status     string
	Outcome    string
	Error      string
	Timestamp  time.Time
}

type AuditLog interface {
	Record(ctx context.Context, e AuditEntry) error
}

// FileAuditLog appends one JSON line per entry to a file.
type FileAuditLog struct {
	log  *zap.Logger
	file *os.File
}

func NewFileAuditLog(path string) (*FileAuditLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(f), zapcore.InfoLevel)
	return &FileAuditLog{log: zap.New(core), file: f}, nil
}

func (l *FileAuditLog) Record(_ context.Context, e AuditEntry) error {
	fields := []zap.Field{
		zap.String("timestamp", e.Timestamp.UTC().Format(time.RFC3339Nano)),
		zap.String("event_id", e.EventID),
		zap.String("event_type", e.EventType),
		zap.String("customer_id", e.CustomerID),
		zap.String("user_id", e.UserID),
		zap.String("outcome", e.Outcome),
	}
	if e.Status != "" {
		fields = append(fields, zap.String("status", e.Status))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	l.log.Info("billing_event", fields...)
	return l.log.Sync()
}

func (l *FileAuditLog) Close() error {
	_ = l.log.Sync()
	return l.file.Close()
}
