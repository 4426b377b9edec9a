/*
scheduler.go - Automated monthly payslip generation

PURPOSE:
  Runs payroll.GenerateMonth on a cron schedule so every employee with a
  confirmed contract gets a payslip for the month that just ended.

DESIGN:
  - robfig/cron drives the schedule (standard 5-field spec or descriptors
    such as "@monthly")
  - A scheduled run generates the month before the run date; the default
    spec "0 6 1 * *" therefore closes the previous month on the 1st
  - Generation is idempotent per employee and month, so a late or repeated
    run never duplicates payslips
  - The last run (scheduled or manual) is kept for the status endpoint

USAGE:
  s := NewGenerationScheduler(svc, "0 6 1 * *", "normal", logger)
  if err := s.Start(); err != nil {
      return err
  }
  defer s.Stop(ctx)

SEE ALSO:
  - payroll/generate.go: GenerateMonth
  - handlers_payslips.go: scheduler status and manual run endpoints
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// GenerationRun records one generation run.
type GenerationRun struct {
	At     time.Time
	Manual bool
	Result *payroll.GenerationResult
	Err    error
}

// SchedulerStatus describes the scheduler for the API.
type SchedulerStatus struct {
	Enabled    bool       `json:"enabled"`
	Running    bool       `json:"running"`
	Spec       string     `json:"spec,omitempty"`
	LineTypeID string     `json:"line_type_id,omitempty"`
	Next       *time.Time `json:"next,omitempty"`
	LastRun    *RunDTO    `json:"last_run,omitempty"`
}

// RunDTO is a GenerationRun in API responses.
type RunDTO struct {
	At     time.Time            `json:"at"`
	Manual bool                 `json:"manual"`
	Result *GenerationResultDTO `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// GenerationScheduler runs the monthly payslip generation.
type GenerationScheduler struct {
	Payroll    *payroll.Service
	Spec       string
	LineTypeID string
	Log        zerolog.Logger
	Now        func() time.Time

	mu      sync.Mutex
	c       *cron.Cron
	entry   cron.EntryID
	lastRun *GenerationRun
}

// NewGenerationScheduler creates a scheduler. It stays disabled while
// lineTypeID is empty.
func NewGenerationScheduler(svc *payroll.Service, spec, lineTypeID string, log zerolog.Logger) *GenerationScheduler {
	return &GenerationScheduler{
		Payroll:    svc,
		Spec:       spec,
		LineTypeID: lineTypeID,
		Log:        log,
		Now:        time.Now,
	}
}

// Enabled reports whether scheduled runs are configured.
func (s *GenerationScheduler) Enabled() bool {
	return s.LineTypeID != "" && s.Spec != ""
}

// Start registers the cron job and starts the scheduler.
func (s *GenerationScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled() {
		s.Log.Info().Msg("payslip generation scheduler disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	c := cron.New()
	id, err := c.AddFunc(s.Spec, s.runScheduled)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.Spec, err)
	}
	s.c, s.entry = c, id
	c.Start()

	s.Log.Info().Str("spec", s.Spec).Str("line_type", s.LineTypeID).
		Time("next", c.Entry(id).Next).Msg("payslip generation scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish or ctx to
// expire.
func (s *GenerationScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.Log.Info().Msg("payslip generation scheduler stopped")
}

func (s *GenerationScheduler) runScheduled() {
	month := generic.PreviousMonth(generic.DateOf(s.Now()))
	if _, err := s.run(context.Background(), month.Start, s.LineTypeID, false); err != nil {
		s.Log.Error().Err(err).Str("month", month.String()).Msg("scheduled payslip generation failed")
	}
}

// Run generates the month containing date now. An empty lineTypeID uses the
// scheduler's line type.
func (s *GenerationScheduler) Run(ctx context.Context, date generic.TimePoint, lineTypeID string) (*payroll.GenerationResult, error) {
	if lineTypeID == "" {
		lineTypeID = s.LineTypeID
	}
	if lineTypeID == "" {
		return nil, generic.Invalid("line_type_id", "is required")
	}
	if date.IsZero() {
		date = generic.DateOf(s.Now())
	}
	return s.run(ctx, date, lineTypeID, true)
}

func (s *GenerationScheduler) run(ctx context.Context, date generic.TimePoint, lineTypeID string, manual bool) (*payroll.GenerationResult, error) {
	res, err := s.Payroll.GenerateMonth(ctx, date, lineTypeID)

	s.mu.Lock()
	s.lastRun = &GenerationRun{At: s.Now(), Manual: manual, Result: res, Err: err}
	s.mu.Unlock()

	if err == nil {
		s.Log.Info().Str("month", res.Month.String()).Int("created", len(res.Created)).
			Int("skipped", len(res.Skipped)).Bool("manual", manual).Msg("payslips generated")
	}
	return res, err
}

// Status returns the schedule and the last run.
func (s *GenerationScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SchedulerStatus{
		Enabled:    s.Enabled(),
		Running:    s.c != nil,
		Spec:       s.Spec,
		LineTypeID: s.LineTypeID,
	}
	if s.c != nil {
		next := s.c.Entry(s.entry).Next
		if !next.IsZero() {
			st.Next = &next
		}
	}
	if s.lastRun != nil {
		run := &RunDTO{At: s.lastRun.At, Manual: s.lastRun.Manual}
		if s.lastRun.Result != nil {
			dto := toGenerationResultDTO(*s.lastRun.Result)
			run.Result = &dto
		}
		if s.lastRun.Err != nil {
			run.Error = s.lastRun.Err.Error()
		}
		st.LastRun = run
	}
	return st
}

func toGenerationResultDTO(r payroll.GenerationResult) GenerationResultDTO {
	dto := GenerationResultDTO{
		Start:   formatDate(r.Month.Start),
		End:     formatDate(r.Month.End),
		Created: []string{},
		Skipped: []string{},
	}
	dto.Created = append(dto.Created, r.Created...)
	for _, id := range r.Skipped {
		dto.Skipped = append(dto.Skipped, string(id))
	}
	return dto
}
