package reconcile

import "liquorstock/backend/internal/domain"

// GroupState reports whether the rows of one report date may still be
// corrected. Only the newest group is open, and only until its first edit.
func GroupState(group []domain.SellReport, newestDate string) domain.ReportState {
	if len(group) == 0 || group[0].ReportDate != newestDate {
		return domain.ReportSealed
	}
	for _, row := range group {
		if row.EditCount > 0 {
			return domain.ReportSealed
		}
	}
	return domain.ReportOpen
}
