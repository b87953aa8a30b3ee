package service

import (
	"context"
	"errors"
	"time"

	"liquorstock/backend/internal/domain"
	"liquorstock/backend/internal/logger"
	"liquorstock/backend/internal/store"
)

const auditLogLimit = 200

// Status reports whether the store answers.
func (s *Service) Status(ctx context.Context) domain.AdminStatus {
	now := time.Now().UTC()
	status := domain.AdminStatus{
		Status:        "ok",
		ServerTime:    now,
		UptimeSeconds: int64(now.Sub(s.startedAt).Seconds()),
		DBOK:          true,
	}
	if err := s.repo.Ping(ctx); err != nil {
		logger.Warn(ctx, "store ping failed", "error", err)
		status.Status = "degraded"
		status.DBOK = false
		status.DBError = err.Error()
	}
	return status
}

func (s *Service) DBSummary(ctx context.Context) (domain.DBSummary, error) {
	var summary domain.DBSummary
	err := s.repo.View(ctx, func(r store.Reader) error {
		counts, err := r.Counts(ctx)
		if err != nil {
			return err
		}
		summary.StoreCounts = counts

		latest, err := r.LatestInvoice(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			summary.LatestInvoiceDate = latest.InvoiceDate
			summary.LatestInvoiceNumber = latest.InvoiceNumber
		}

		stock, err := r.GetStockSummary(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			updatedAt := stock.UpdatedAt
			summary.StockSummaryUpdatedAt = &updatedAt
		}
		return nil
	})
	return summary, err
}

func (s *Service) AuditLogs(ctx context.Context) (domain.ListResponse[domain.AuditLog], error) {
	var logs []domain.AuditLog
	err := s.repo.View(ctx, func(r store.Reader) error {
		var err error
		logs, err = r.ListAuditLogs(ctx, auditLogLimit)
		return err
	})
	if err != nil {
		return domain.ListResponse[domain.AuditLog]{}, err
	}
	return domain.NewListResponse(logs), nil
}

func (s *Service) UserLogins(ctx context.Context) (domain.ListResponse[domain.UserLogin], error) {
	var logins []domain.UserLogin
	err := s.repo.View(ctx, func(r store.Reader) error {
		var err error
		logins, err = r.ListUserLogins(ctx)
		return err
	})
	if err != nil {
		return domain.ListResponse[domain.UserLogin]{}, err
	}
	return domain.NewListResponse(logins), nil
}

// DeleteInvoice removes an invoice with its lines and totals. Stock already
// received from it stays on the ledger.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceNumber string) (domain.DeleteResult, error) {
	err := s.repo.Update(ctx, func(tx store.Tx) error {
		if err := tx.DeleteInvoice(ctx, invoiceNumber); err != nil {
			return notFound(err, "invoice not found")
		}
		return s.audit(ctx, tx, "delete_invoice", "invoice", invoiceNumber, "")
	})
	if err != nil {
		return domain.DeleteResult{}, err
	}
	return domain.DeleteResult{Status: "ok", Deleted: 1}, nil
}
