package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bingefriend/episode-importer/pkg/tvmaze"
)

// defaultUpdatesCron polls the updates feed daily at 03:00 UTC.
const defaultUpdatesCron = "0 3 * * *"

// UpdatesScheduler runs the updates poll on a cron schedule.
type UpdatesScheduler struct {
	service *Service
	cron    string
	period  tvmaze.Period
	logger  zerolog.Logger
}

// NewUpdatesScheduler creates a scheduler. An empty cron expression
// selects the daily default; an empty period polls the day window.
func NewUpdatesScheduler(service *Service, cronExpr string, period tvmaze.Period) (*UpdatesScheduler, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if cronExpr == "" {
		cronExpr = defaultUpdatesCron
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid updates cron expression: %s", cronExpr)
	}
	if period == "" {
		period = tvmaze.PeriodDay
	}

	return &UpdatesScheduler{
		service: service,
		cron:    cronExpr,
		period:  period,
		logger:  log.With().Str("component", "updates-scheduler").Logger(),
	}, nil
}

// Run blocks until the context is cancelled, firing the updates poll at
// each cron tick. Polls run inline, so a slow poll delays the next tick
// rather than overlapping it.
func (s *UpdatesScheduler) Run(ctx context.Context) {
	s.logger.Info().
		Str("cron", s.cron).
		Str("period", string(s.period)).
		Msg("Updates scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Updates scheduler stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(s.cron, now, false)
		if err != nil {
			s.logger.Error().Err(err).Str("cron", s.cron).Msg("Could not compute next tick")
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if _, err := s.service.GetUpdates(ctx, s.period); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled updates poll failed")
			}
		case <-ctx.Done():
			s.logger.Info().Msg("Updates scheduler stopping")
			return
		}
	}
}
