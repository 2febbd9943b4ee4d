package handler

import (
	"encoding/json"
	"net/http"

	"github.com/ferrand/invoiceflow-bff-go/internal/domain"
	"github.com/ferrand/invoiceflow-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Invoices
// ============================================================

func listInvoicesHandler(invoices *service.Invoices, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices")
		defer span.End()

		invoices.FetchAll(ctx)
		writeJSON(w, http.StatusOK, invoices.All())
	}
}

func getInvoiceHandler(invoices *service.Invoices, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/invoices/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("invoice.id", id))

		inv := invoices.FetchOne(ctx, id)
		if inv == nil {
			writeError(w, http.StatusNotFound, "invoice not found: "+id)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}

func createInvoiceHandler(invoices *service.Invoices, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices")
		defer span.End()

		var form domain.InvoiceForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if form.ClientID == "" || form.InvoiceNumber == "" {
			writeError(w, http.StatusBadRequest, "client_id and invoice_number are required")
			return
		}

		created, err := invoices.Create(ctx, form)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

type statusRequest struct {
	Status domain.InvoiceStatus `json:"status"`
}

func updateInvoiceStatusHandler(invoices *service.Invoices, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/invoices/{id}/status")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("invoice.id", id))

		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := invoices.UpdateStatus(ctx, id, req.Status); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
	}
}

func deleteInvoiceHandler(invoices *service.Invoices, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/invoices/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("invoice.id", id))

		if err := invoices.Delete(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func nextInvoiceNumberHandler(invoices *service.Invoices, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/invoices/number/next")
		defer span.End()

		writeJSON(w, http.StatusOK, map[string]string{"invoice_number": invoices.GenerateNumber()})
	}
}
