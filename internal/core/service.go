package core

import (
	"context"
	"io"
	"time"

	"github.com/JonMunkholm/clodoo/internal/logging"
)

// RunTimeout bounds one import submitted through the Service.
var RunTimeout = 10 * time.Minute

// Service is the entry point of the server: it admits runs through a
// limiter, hands them to the Importer and remembers the results.
type Service struct {
	importer *Importer
	limiter  *RunLimiter
	history  *RunHistory
}

// NewService wraps im. A nil limiter or history gets a default one.
func NewService(im *Importer, limiter *RunLimiter, history *RunHistory) *Service {
	if limiter == nil {
		limiter = NewRunLimiter(0, 0)
	}
	if history == nil {
		history = NewRunHistory(0)
	}
	return &Service{importer: im, limiter: limiter, history: history}
}

// Importer returns the importer runs are handed to.
func (s *Service) Importer() *Importer {
	return s.importer
}

// Import runs a record import of r. A nil result means the run was not
// admitted; otherwise the run is recorded whatever its status.
func (s *Service) Import(ctx context.Context, fileName string, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	return s.run(ctx, ActionImport, func(ctx context.Context) (*ImportResult, error) {
		return s.importer.Import(ctx, r, fileName, opts)
	})
}

// ImportConfig runs a parameter import of r.
func (s *Service) ImportConfig(ctx context.Context, fileName string, r io.Reader) (*ImportResult, error) {
	return s.run(ctx, ActionImportConfig, func(ctx context.Context) (*ImportResult, error) {
		return s.importer.ImportConfig(ctx, r, fileName)
	})
}

func (s *Service) run(ctx context.Context, action RunAction, fn func(context.Context) (*ImportResult, error)) (*ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		logging.FromContext(ctx).Warn("run rejected", "action", action, "error", err)
		return nil, err
	}
	defer s.limiter.Release()

	runCtx, cancel := context.WithTimeout(ctx, RunTimeout)
	defer cancel()

	res, err := fn(runCtx)
	if res != nil {
		ip, ua := originFromContext(ctx)
		s.history.Add(RunRecord{
			Action:    action,
			IPAddress: ip,
			UserAgent: ua,
			Result:    res,
		})
	}
	return res, err
}

// Runs returns up to limit recorded runs, newest first.
func (s *Service) Runs(limit int) []RunRecord {
	return s.history.List(limit)
}

// Run returns a recorded run.
func (s *Service) Run(runID string) (RunRecord, bool) {
	return s.history.Get(runID)
}

// Entities lists the entities with registered providers.
func (s *Service) Entities() []string {
	return Providers()
}

// LimiterStatus reports run slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until admitted runs finish or ctx ends.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}
