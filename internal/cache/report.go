package cache

import (
	"github.com/agorahq/agora/backend/internal/logger"
	"github.com/agorahq/agora/backend/internal/metrics"
	"go.uber.org/zap"
)

// ReportError logs a failed bus operation at error level and counts it.
// Callers use it where the failure is swallowed rather than returned.
func ReportError(op string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	metrics.Get().BusErrorsTotal.WithLabelValues(op).Inc()
	logger.ErrorWithFields("shared bus "+op+" failed", err, fields...)
}
