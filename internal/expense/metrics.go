package expense

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"gitlab.com/yelinaung/expense-claims/internal/logger"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

const instrumentationName = "gitlab.com/yelinaung/expense-claims/internal/expense"

type metrics struct {
	created       metric.Int64Counter
	statusChanged metric.Int64Counter
	auditFailures metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)
	fallback := noop.Meter{}

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Log.Warn().Err(err).Str("metric", name).Msg("Failed to create counter")
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	return &metrics{
		created:       counter("expense.created", "Expenses created"),
		statusChanged: counter("expense.status_changed", "Expense status transitions"),
		auditFailures: counter("expense.audit.failures", "Audit records that could not be written"),
	}
}

func (m *metrics) expenseCreated(ctx context.Context, category models.Category) {
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(category))))
}

func (m *metrics) expenseStatusChanged(ctx context.Context, status models.ExpenseStatus) {
	m.statusChanged.Add(ctx, 1, metric.WithAttributes(attribute.String("new_status", string(status))))
}

func (m *metrics) auditFailed(ctx context.Context, action models.AuditAction) {
	m.auditFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(action))))
}
