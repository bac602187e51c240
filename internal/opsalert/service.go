package opsalert

import (
	"context"
	"fmt"

	"github.com/yakushift/staffing-platform/internal/staffing"
	"github.com/yakushift/staffing-platform/pkg/logging"
)

// Service turns request milestones into operator email. It plugs into
// the conversation engine's alert hook and no-ops until both a sender
// and an operator address are configured.
type Service struct {
	email EmailSender
	to    string
	log   *logging.Logger
}

// NewService creates the alert service.
func NewService(email EmailSender, operatorEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, to: operatorEmail, log: logger}
}

func (s *Service) enabled() bool {
	return s != nil && s.email != nil && s.to != ""
}

// RequestSubmitted alerts only when dispatch reached nobody; a submit
// that notified at least one pharmacist needs no human attention.
func (s *Service) RequestSubmitted(ctx context.Context, req *staffing.Request, notified int) error {
	if !s.enabled() || notified > 0 {
		return nil
	}
	msg := EmailMessage{
		To:      s.to,
		Subject: fmt.Sprintf("【要対応】勤務依頼 %s 応募可能者なし", req.ID),
		Body: fmt.Sprintf("勤務依頼に応募可能な薬剤師が見つかりませんでした。\n\n"+
			"薬局: %s\n勤務日: %s\n時間帯: %s\n必要人数: %d名\n依頼ID: %s\n\n"+
			"手動での調整をご検討ください。",
			req.StoreRef, displayDate(req), req.Window(), req.RequiredCount, req.ID),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("opsalert: no-availability alert: %w", err)
	}
	s.log.Info("no-availability alert sent", "request_id", req.ID)
	return nil
}

// RequestFilled reports a fully staffed request.
func (s *Service) RequestFilled(ctx context.Context, req *staffing.Request) error {
	if !s.enabled() {
		return nil
	}
	msg := EmailMessage{
		To:      s.to,
		Subject: fmt.Sprintf("【充足】勤務依頼 %s", req.ID),
		Body: fmt.Sprintf("勤務依頼が必要人数に達しました。\n\n"+
			"薬局: %s\n勤務日: %s\n時間帯: %s\n確定人数: %d名\n依頼ID: %s",
			req.StoreRef, displayDate(req), req.Window(), len(req.Confirmed), req.ID),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("opsalert: filled alert: %w", err)
	}
	s.log.Info("filled alert sent", "request_id", req.ID)
	return nil
}

func displayDate(req *staffing.Request) string {
	if req.DateText != "" {
		return req.DateText
	}
	return req.ShortDate()
}
