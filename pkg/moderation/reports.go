package moderation

import (
	"fmt"

	"coachdesk-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// TriageRequest carries a requested report transition and its optional
// thread-freeze side effects.
type TriageRequest struct {
	Status         models.ReportStatus `json:"status"`
	FreezeThread   bool                `json:"freeze_thread,omitempty"`   // applies when moving to in_review
	UnfreezeThread bool                `json:"unfreeze_thread,omitempty"` // applies when moving to resolved
}

// FileReport opens a new report against a thread (or one message in it).
func (s *Service) FileReport(threadID string, messageID *string, reporterID, details string) (*models.Report, error) {
	if _, err := s.db.GetThreadByID(threadID); err != nil {
		return nil, fmt.Errorf("file report: %w", err)
	}

	report := &models.Report{
		ThreadID:   threadID,
		MessageID:  messageID,
		ReporterID: reporterID,
		Details:    details,
		Status:     models.ReportOpen,
	}
	if err := s.db.CreateReport(report); err != nil {
		return nil, fmt.Errorf("file report: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"report_id":   report.ID,
		"thread_id":   threadID,
		"reporter_id": reporterID,
	}).Info("report filed")
	return report, nil
}

// TriageReport moves a report along open -> in_review -> resolved (or
// open -> resolved directly). Resolution is terminal: no transition ever
// leaves resolved. Moving to in_review may freeze the thread as a side
// effect; moving to resolved may clear the freeze.
func (s *Service) TriageReport(reportID, callerID string, req TriageRequest) (*models.Report, error) {
	report, err := s.db.GetReportByID(reportID)
	if err != nil {
		return nil, fmt.Errorf("triage report: %w", err)
	}

	if !transitionAllowed(report.Status, req.Status) {
		return nil, fmt.Errorf("%s -> %s: %w", report.Status, req.Status, ErrInvalidTransition)
	}

	from := report.Status
	report.Status = req.Status

	switch req.Status {
	case models.ReportInReview:
		if req.FreezeThread {
			reason := fmt.Sprintf("report %s under review", report.ID)
			if err := s.db.FreezeThread(report.ThreadID, callerID, reason); err != nil {
				return nil, fmt.Errorf("triage report: %w", err)
			}
			report.FreezeApplied = true
		}
	case models.ReportResolved:
		if req.UnfreezeThread && report.FreezeApplied {
			if err := s.db.UnfreezeThread(report.ThreadID); err != nil {
				return nil, fmt.Errorf("triage report: %w", err)
			}
			report.FreezeApplied = false
		}
	}

	if err := s.db.UpdateReportStatus(report); err != nil {
		return nil, fmt.Errorf("triage report: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"report_id": report.ID,
		"thread_id": report.ThreadID,
		"caller_id": callerID,
		"from":      string(from),
		"to":        string(report.Status),
		"frozen":    report.FreezeApplied,
	}).Info("report transition")
	return report, nil
}

// transitionAllowed encodes the triage state machine.
func transitionAllowed(from, to models.ReportStatus) bool {
	switch from {
	case models.ReportOpen:
		return to == models.ReportInReview || to == models.ReportResolved
	case models.ReportInReview:
		return to == models.ReportResolved
	default:
		return false
	}
}
