package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/export"
	"liquorstock/backend/internal/logger"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := a.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	principal, err := a.auth.Verify(ctx, req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.service.RecordLogin(ctx, principal); err != nil {
		writeError(w, r, err)
		return
	}
	token, expiresAt, err := a.auth.IssueToken(principal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := domain.LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Username:    principal.Username,
		Role:        principal.Role,
		ExpiresAt:   expiresAt,
	}
	if summary, err := a.service.DashboardSummary(ctx); err == nil {
		resp.Summary = &summary
	} else {
		logger.Warn(ctx, "dashboard summary for login failed", "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListStock(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.ListStock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockUpdateRequest
	if err := a.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.service.UpdateStock(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePreviewInvoice(w http.ResponseWriter, r *http.Request) {
	var doc domain.InvoiceDocument
	if err := a.decodeJSON(w, r, &doc, true); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.service.PreviewInvoice(r.Context(), doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleIngestInvoice(w http.ResponseWriter, r *http.Request) {
	var doc domain.InvoiceDocument
	if err := a.decodeJSON(w, r, &doc, true); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.service.IngestInvoice(r.Context(), doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ListInvoices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePrepareSellReport(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.PrepareSellReport(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateSellReport(w http.ResponseWriter, r *http.Request) {
	var req domain.SellReportCreateRequest
	if err := a.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.service.CreateSellReport(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if len(resp.Items) == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (a *API) handleEditLastSellReport(w http.ResponseWriter, r *http.Request) {
	var req domain.SellReportEditRequest
	if err := a.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.service.EditLastSellReport(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListSellReports(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ListSellReportGroups(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleExportSellReport(w http.ResponseWriter, r *http.Request) {
	sheet, err := a.service.SellReportSheet(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.SellReportFileName(sheet.ReportDate))
	if err := export.WriteSellReport(w, sheet); err != nil {
		logger.Error(r.Context(), "write sell report workbook", "report_date", sheet.ReportDate, "error", err)
	}
}

func (a *API) handlePrepareSellFinance(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.PrepareSellFinance(r.Context(), strings.TrimSpace(r.URL.Query().Get("report_date")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCreateSellFinance(w http.ResponseWriter, r *http.Request) {
	var req domain.SellFinanceRequest
	if err := a.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.service.CreateSellFinance(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleFinanceOverview(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.FinanceOverview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.DashboardSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
