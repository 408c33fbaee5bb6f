package scheduler

import (
	"context"
	"time"

	"whatsapp-console/internal/dispatch"
	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"

	"go.uber.org/zap"
)

// Scheduler polls for due scheduled messages and hands them to the
// dispatcher. Outcomes are written back to the scheduled row so operators
// can see what fired and what failed.
type Scheduler struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	interval   time.Duration
	logger     *zap.Logger
}

func New(st *store.Store, dispatcher *dispatch.Dispatcher, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{store: st, dispatcher: dispatcher, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, processing due rows every tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.ProcessDue(ctx)
		}
	}
}

// ProcessDue dispatches every pending row whose scheduled time has passed.
func (s *Scheduler) ProcessDue(ctx context.Context) {
	due, err := s.store.DueScheduledMessages(ctx, time.Now(), 100)
	if err != nil {
		s.logger.Error("failed to fetch due scheduled messages", zap.Error(err))
		return
	}

	for _, row := range due {
		if err := s.dispatchOne(ctx, &row); err != nil {
			if markErr := s.store.MarkScheduledFailed(ctx, row.ID, err.Error()); markErr != nil {
				s.logger.Error("failed to mark scheduled message failed",
					zap.Uint("scheduled_id", row.ID),
					zap.Error(markErr),
				)
			}
			s.logger.Warn("scheduled send failed", zap.Uint("scheduled_id", row.ID), zap.Error(err))
			continue
		}
		if err := s.store.MarkScheduledSent(ctx, row.ID); err != nil {
			s.logger.Error("failed to mark scheduled message sent",
				zap.Uint("scheduled_id", row.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *Scheduler) dispatchOne(ctx context.Context, row *models.ScheduledMessage) error {
	if row.ContactID == nil {
		return &dispatch.ValidationError{Field: "contactId", Reason: "scheduled message has no contact"}
	}

	req := &dispatch.SendRequest{
		ChannelID: row.ChannelID,
		ContactID: *row.ContactID,
		Type:      models.TypeText,
		Content:   row.Content,
	}
	if row.MessageType == models.TypeTemplate && row.TemplateID != nil {
		template, err := s.store.Template(ctx, *row.TemplateID)
		if err != nil {
			return err
		}
		req.Type = models.TypeTemplate
		req.TemplateName = template.Name
		req.LanguageCode = template.Language
	}

	_, err := s.dispatcher.SendOutbound(ctx, req)
	return err
}
