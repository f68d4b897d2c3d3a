package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"study_reminder_bot/internal/domain/alarm"
	"study_reminder_bot/internal/domain/channel"
	"study_reminder_bot/internal/domain/recipient"
	"study_reminder_bot/internal/domain/review"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RunLocker is the storage-level claim preventing overlapping dispatch runs.
type RunLocker interface {
	Acquire(ctx context.Context, token string, now time.Time) error
	Release(ctx context.Context, token string) error
}

// DispatchConfig bounds a dispatch run.
type DispatchConfig struct {
	Workers          int
	RatePerSec       float64
	RecipientTimeout time.Duration
}

// RunOptions parameterize a single dispatch run.
type RunOptions struct {
	// TestRecipientID restricts the run to one recipient. Zero means the
	// full active population.
	TestRecipientID int64
	// DryRun executes every step except the channel calls and the state
	// writes that a real delivery would cause. Sent is still counted so the
	// output is comparable to a real run.
	DryRun bool
	// ForceNow bypasses the tolerance window.
	ForceNow bool
	// Now overrides the instant used for selection and state transitions.
	// Zero means wall clock. Report timestamps always use the wall clock.
	Now time.Time
}

// DispatchService orchestrates one reminder batch: select due work, compute
// payloads, deliver, apply state transitions and record the report. One
// recipient's failure never affects another's outcome.
type DispatchService struct {
	recipients recipient.Repository
	reviews    review.Repository
	alarms     alarm.Repository
	selector   *DueWorkSelector
	channels   *channel.Registry
	locker     RunLocker
	limiter    *rate.Limiter
	cfg        DispatchConfig
	logger     *logrus.Logger
}

func NewDispatchService(
	recipients recipient.Repository,
	reviews review.Repository,
	alarms alarm.Repository,
	selector *DueWorkSelector,
	channels *channel.Registry,
	locker RunLocker,
	cfg DispatchConfig,
	logger *logrus.Logger,
) *DispatchService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RecipientTimeout <= 0 {
		cfg.RecipientTimeout = 10 * time.Second
	}
	return &DispatchService{
		recipients: recipients,
		reviews:    reviews,
		alarms:     alarms,
		selector:   selector,
		channels:   channels,
		locker:     locker,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one dispatch batch to completion and returns its report. Only
// terminal failures (lock held, population unavailable) return an error;
// everything per-recipient ends up in the report instead.
func (s *DispatchService) Run(ctx context.Context, opts RunOptions) (*DispatchReport, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	// Report timestamps stay on the wall clock even when opts.Now overrides
	// the selection instant, so FinishedAt never precedes StartedAt.
	report := newDispatchReport(uuid.NewString(), time.Now(), opts.DryRun)

	token := uuid.NewString()
	if err := s.locker.Acquire(ctx, token, now); err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, token); err != nil {
			s.logger.Warnf("Run %s: failed to release run lock: %v", report.RunID, err)
		}
	}()

	population, err := s.population(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("Run %s: dispatching to %d recipient(s), dry_run=%t", report.RunID, len(population), opts.DryRun)

	jobs := make(chan *recipient.Recipient)
	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				s.processRecipient(ctx, rec, now, opts, report)
			}
		}()
	}
	for _, rec := range population {
		jobs <- rec
	}
	close(jobs)
	wg.Wait()

	report.finish(time.Now())
	return report, nil
}

func (s *DispatchService) population(ctx context.Context, opts RunOptions) ([]*recipient.Recipient, error) {
	if opts.TestRecipientID != 0 {
		rec, err := s.recipients.GetByID(ctx, opts.TestRecipientID)
		if err != nil {
			return nil, fmt.Errorf("load test recipient %d: %w", opts.TestRecipientID, err)
		}
		return []*recipient.Recipient{rec}, nil
	}
	population, err := s.recipients.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active recipients: %w", err)
	}
	return population, nil
}

// processRecipient handles one recipient under its own timeout. All failures,
// including panics out of payload computation or a channel, are converted
// into report entries so the batch continues.
func (s *DispatchService) processRecipient(ctx context.Context, rec *recipient.Recipient, now time.Time, opts RunOptions, report *DispatchReport) {
	defer func() {
		if r := recover(); r != nil {
			report.addError(rec.ID, fmt.Sprintf("panic: %v", r))
			s.logger.Errorf("Recipient %d: recovered panic: %v", rec.ID, r)
		}
	}()

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RecipientTimeout)
	defer cancel()

	work, err := s.selector.Select(rctx, rec, now, opts.ForceNow, report)
	if err != nil {
		report.addError(rec.ID, err.Error())
		return
	}
	if work == nil {
		return
	}

	if work.DueReviewCount > 0 {
		s.sendReviewReminder(rctx, rec, work.DueReviewCount, now, opts, report)
	}
	for _, inst := range work.DueAlarms {
		s.fireAlarm(rctx, rec, inst, now, opts, report)
	}
	for _, inst := range work.RetryAlarms {
		s.retryAlarm(rctx, rec, inst, now, opts, report)
	}
}

func (s *DispatchService) sendReviewReminder(ctx context.Context, rec *recipient.Recipient, dueCount int, now time.Time, opts RunOptions, report *DispatchReport) {
	n := reviewNotification(dueCount)

	if opts.DryRun {
		report.noteSent()
		return
	}

	ch, ok := s.channels.For(alarm.KindNotification)
	if !ok {
		report.addError(rec.ID, "no channel registered for review reminders")
		return
	}
	if err := s.limiter.Wait(ctx); err != nil {
		report.addError(rec.ID, fmt.Sprintf("rate limiter: %v", err))
		return
	}
	if err := ch.Deliver(ctx, rec.ID, n); err != nil {
		report.addError(rec.ID, fmt.Sprintf("review reminder delivery: %v", err))
		return
	}
	if err := s.reviews.MarkReminderSent(ctx, rec.ID, now); err != nil {
		// The reminder went out; a missing marker only risks a duplicate on
		// a re-run within the window.
		s.logger.Warnf("Recipient %d: failed to record reminder marker: %v", rec.ID, err)
	}
	report.noteSent()
}

// fireAlarm drives one due instance through the state machine. Delivery
// failure lands on the instance (failed + retry count), is persisted and
// reported; it never aborts the batch.
func (s *DispatchService) fireAlarm(ctx context.Context, rec *recipient.Recipient, inst *alarm.Instance, now time.Time, opts RunOptions, report *DispatchReport) {
	event, err := s.alarms.GetEvent(ctx, inst.EventID)
	if err != nil {
		report.addError(rec.ID, fmt.Sprintf("alarm %d: load event: %v", inst.ID, err))
		return
	}
	n := alarmNotification(event, inst)

	if opts.DryRun {
		// A dry run must leave alarm state untouched.
		report.noteSent()
		return
	}

	if err := inst.Trigger(now, s.sendFunc(ctx, rec.ID, inst.Kind, n)); err != nil {
		report.addError(rec.ID, fmt.Sprintf("alarm %d: %v", inst.ID, err))
		return
	}
	s.persistAlarmOutcome(ctx, rec, inst, report)
}

func (s *DispatchService) retryAlarm(ctx context.Context, rec *recipient.Recipient, inst *alarm.Instance, now time.Time, opts RunOptions, report *DispatchReport) {
	event, err := s.alarms.GetEvent(ctx, inst.EventID)
	if err != nil {
		report.addError(rec.ID, fmt.Sprintf("alarm %d: load event: %v", inst.ID, err))
		return
	}
	n := alarmNotification(event, inst)

	if opts.DryRun {
		report.noteSent()
		return
	}

	if !inst.Retry(now, s.sendFunc(ctx, rec.ID, inst.Kind, n)) {
		return
	}
	s.persistAlarmOutcome(ctx, rec, inst, report)
}

func (s *DispatchService) persistAlarmOutcome(ctx context.Context, rec *recipient.Recipient, inst *alarm.Instance, report *DispatchReport) {
	if err := s.alarms.UpdateInstance(ctx, inst); err != nil {
		report.addError(rec.ID, fmt.Sprintf("alarm %d: persist state: %v", inst.ID, err))
		return
	}
	if inst.Status == alarm.StatusSent {
		report.noteSent()
		return
	}
	report.addError(rec.ID, fmt.Sprintf("alarm %d delivery failed (attempt %d): %s", inst.ID, inst.RetryCount, inst.LastError))
}

func (s *DispatchService) sendFunc(ctx context.Context, recipientID int64, kind alarm.Kind, n channel.Notification) alarm.SendFunc {
	return func() error {
		ch, ok := s.channels.For(kind)
		if !ok {
			return fmt.Errorf("no channel registered for kind %q", kind)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		return ch.Deliver(ctx, recipientID, n)
	}
}

func reviewNotification(dueCount int) channel.Notification {
	word := "cards"
	if dueCount == 1 {
		word = "card"
	}
	return channel.Notification{
		Title:         "Time to review",
		Message:       fmt.Sprintf("You have %d %s due for review.", dueCount, word),
		Payload:       map[string]string{"due_count": fmt.Sprintf("%d", dueCount)},
		Priority:      channel.PriorityNormal,
		ExpiresInDays: 1,
		Transports:    []channel.Transport{channel.TransportWebsocket, channel.TransportPush},
	}
}

func alarmNotification(event *alarm.Event, inst *alarm.Instance) channel.Notification {
	transports := []channel.Transport{channel.TransportWebsocket, channel.TransportPush}
	if inst.Kind == alarm.KindEmail {
		transports = []channel.Transport{channel.TransportEmail}
	}
	return channel.Notification{
		Title:         "Upcoming event",
		Message:       fmt.Sprintf("%s starts at %s.", event.Title, event.StartAt.Format("15:04 on Jan 2")),
		Payload:       map[string]string{"event_id": fmt.Sprintf("%d", event.ID)},
		Priority:      channel.PriorityHigh,
		ExpiresInDays: 1,
		Transports:    transports,
	}
}
