package server

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teranos/promanage/am"
	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/logger"
)

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, logger.FieldError, err)...)
}

// startCron runs the scheduler on scheduler.cron. An empty spec disables it.
func (s *Server) startCron() error {
	spec := s.config().Scheduler.Cron
	if spec == "" {
		return nil
	}
	sched, err := am.CronParser.Parse(spec)
	if err != nil {
		return errors.Wrapf(err, "invalid scheduler.cron %q", spec)
	}

	log := s.logger.Named("cron")
	c := cron.New(
		cron.WithParser(am.CronParser),
		cron.WithLogger(cronLogger{log}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})),
	)
	c.Schedule(sched, cron.FuncJob(s.runScheduled))
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	log.Infow("Periodic scheduling enabled", "cron", spec, "next", sched.Next(s.timeNow()))
	return nil
}

// runScheduled is one cron-triggered run; it is not subject to the HTTP rate limit
func (s *Server) runScheduled() {
	result, err := s.service.Run(s.ctx)
	if err != nil {
		s.logger.Errorw("Scheduled run failed", logger.FieldError, err)
		return
	}
	s.logger.Infow("Scheduled run complete",
		logger.FieldRunID, result.Run.ID,
		logger.FieldScheduledCount, result.Run.ScheduledCount,
	)
}

func (s *Server) stopCron() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Infow("Periodic scheduling stopped")
}
