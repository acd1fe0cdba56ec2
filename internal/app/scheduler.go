package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/kpisync/internal/config"
	"github.com/okian/kpisync/internal/domain/model"
	"github.com/okian/kpisync/pkg/logger"
)

// schedule registers the timer trigger. A tick that finds the queue full is
// dropped: a run is already pending and will pick up the same data.
func (s *Service) schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLocation(s.window.Location),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	_, err := c.AddFunc(s.cfg.Schedule, func() { s.tick(ctx) })
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", s.cfg.Schedule, err)
	}
	return c, nil
}

func (s *Service) tick(ctx context.Context) {
	_, err := s.Submit(ctx, model.DefaultRunRequest(model.TriggerTimer), false)
	switch {
	case errors.Is(err, ErrBusy):
		s.logger.Warn(ctx, "timer run skipped, queue full")
	case err != nil:
		s.logger.Error(ctx, "timer run not queued", logger.Error(err))
	default:
		s.logger.Info(ctx, "timer run queued")
	}
}
