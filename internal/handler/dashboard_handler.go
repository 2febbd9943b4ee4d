package handler

import (
	"net/http"
	"time"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/infra/observability"
	"github.com/ferrand/invoiceflow-bff-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Dashboard
// ============================================================

const recentInvoicesLimit = 5

type dashboardResponse struct {
	Stats          domain.DashboardStats      `json:"stats"`
	RecentInvoices []*domain.Invoice          `json:"recentInvoices"`
	ClientCount    int                        `json:"clientCount"`
	Ops            *observability.OpsSnapshot `json:"ops"`
}

func dashboardHandler(clients *service.Clients, invoices *service.Invoices, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard")
		defer span.End()

		start := time.Now()

		// Both collections refresh concurrently. Fetch failures keep the
		// previous data, so the dashboard always renders.
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			clients.FetchAll(gctx)
			return nil
		})
		g.Go(func() error {
			invoices.FetchAll(gctx)
			return nil
		})
		if err := g.Wait(); err != nil {
			logger.Warn("dashboard: refresh error", zap.Error(err))
		}

		all := invoices.All()
		recent := all
		if len(recent) > recentInvoicesLimit {
			recent = recent[:recentInvoicesLimit]
		}

		metrics.RecordRequestDuration("dashboard", time.Since(start))

		writeJSON(w, http.StatusOK, dashboardResponse{
			Stats:          invoices.Stats(),
			RecentInvoices: recent,
			ClientCount:    len(clients.All()),
			Ops:            metrics.GetOpsSnapshot(),
		})
	}
}
