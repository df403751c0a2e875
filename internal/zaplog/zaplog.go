// Package zaplog adapts a zap logger to the service's operation log seam.
package zaplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

// Logger writes one structured line per domain operation.
type Logger struct {
	base *zap.Logger
}

// New returns a Logger writing through base.
func New(base *zap.Logger) *Logger {
	return &Logger{base: base}
}

// LogOperation implements tablebook.OperationLogger.
func (logger *Logger) LogOperation(_ context.Context, entry tablebook.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.Int64("guest_id", int64(entry.GuestID)),
		zap.String("status", entry.Status),
	}
	if entry.TableID != 0 {
		fields = append(fields, zap.Int("table_id", int(entry.TableID)))
	}
	if entry.Date != "" {
		fields = append(fields, zap.String("date", entry.Date), zap.String("time", entry.TimeOfDay))
	}
	if entry.OrderID != 0 {
		fields = append(fields, zap.Int64("order_id", entry.OrderID))
	}
	if entry.AmountCents != 0 {
		fields = append(fields, zap.Int64("amount_cents", entry.AmountCents))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		logger.base.Warn("operation failed", fields...)
		return
	}
	logger.base.Info("operation", fields...)
}
