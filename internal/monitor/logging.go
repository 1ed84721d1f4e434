package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/tamzrod/modbus-monitor/internal/logger"
)

var _ Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger logger.Logger
	svc    Service
}

// LoggingMiddleware adds operation-level logging to the monitor service.
func LoggingMiddleware(svc Service, logger logger.Logger) Service {
	return &loggingMiddleware{logger, svc}
}

func (lm *loggingMiddleware) AddGroup(g Group) (err error) {
	defer func() {
		if err != nil {
			lm.logger.Warn(fmt.Sprintf("Method add_group for %q failed: %s", g.Name, err))
			return
		}
		lm.logger.Debug(fmt.Sprintf("Method add_group registered %q (%s, address=%d, count=%d)",
			g.Name, g.Kind, g.Address, g.Count))
	}()

	return lm.svc.AddGroup(g)
}

func (lm *loggingMiddleware) Run(ctx context.Context, handler Handler) (err error) {
	defer func(begin time.Time) {
		message := fmt.Sprintf("Method run took %s to complete", time.Since(begin))
		if err != nil {
			lm.logger.Error(fmt.Sprintf("%s with error: %s.", message, err))
			return
		}
		lm.logger.Info(fmt.Sprintf("%s without errors.", message))
	}(time.Now())

	return lm.svc.Run(ctx, handler)
}

func (lm *loggingMiddleware) Stop() {
	defer func(begin time.Time) {
		lm.logger.Info(fmt.Sprintf("Method stop took %s to complete", time.Since(begin)))
	}(time.Now())

	lm.svc.Stop()
}
