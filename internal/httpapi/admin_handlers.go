package httpapi

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"liquorstock/backend/internal/apperror"
	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/pricing"
)

func (a *API) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.service.Status(r.Context()))
}

func (a *API) handleDBSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.DBSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.AuditLogs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUserLogins(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.UserLogins(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDeleteSellReport(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.DeleteSellReport(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.DeleteInvoice(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDeleteSellFinance(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.DeleteSellFinance(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePatchStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, apperror.NewValidation("invalid stock id"))
		return
	}
	var req domain.StockPatchRequest
	if err := a.decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	line, err := a.service.PatchStock(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stock": line})
}

func (a *API) handleListPriceList(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.ListPriceList(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleImportPriceList accepts the price list either as a JSON body or as a
// multipart upload of a .json or .xlsx file in the "file" field.
func (a *API) handleImportPriceList(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	var (
		items []domain.PriceListItem
		err   error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		items, err = parseUploadedPriceList(r)
	} else {
		items, err = pricing.ParseJSON(r.Body)
	}
	if err != nil {
		writeError(w, r, apperror.NewValidation("could not read price list").WithCause(err))
		return
	}

	result, err := a.service.ImportPriceList(r.Context(), items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseUploadedPriceList(r *http.Request) ([]domain.PriceListItem, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var parse func(io.Reader) ([]domain.PriceListItem, error)
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		parse = pricing.ParseXLSX
	case ".json":
		parse = pricing.ParseJSON
	default:
		return nil, apperror.NewValidation("price list must be a .json or .xlsx file")
	}
	return parse(file)
}
