package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study_reminder_bot/internal/domain/alarm"
	"study_reminder_bot/internal/domain/recipient"
	"study_reminder_bot/internal/domain/review"
	idb "study_reminder_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// PreferenceCache is the explicit cache collaborator for preference reads:
// every entry carries its key, value and TTL.
type PreferenceCache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// DueWork is everything one recipient currently owes a reminder for.
type DueWork struct {
	Recipient      *recipient.Recipient
	Preference     *recipient.Preference
	DueReviewCount int
	DueAlarms      []*alarm.Instance
	RetryAlarms    []*alarm.Instance
}

// DueWorkSelector applies the staged filter deciding whether a recipient
// qualifies as due right now:
//
//  1. an enabled reminder preference exists,
//  2. now falls inside the preference's tolerance window,
//  3. at least one unit of due work exists (due review items not yet
//     reminded today, or a due/retryable alarm instance).
//
// Each elimination is counted on the report's stage counters.
type DueWorkSelector struct {
	recipients recipient.Repository
	reviews    review.Repository
	alarms     alarm.Repository
	prefCache  PreferenceCache
	prefTTL    time.Duration
	logger     *logrus.Logger
}

func NewDueWorkSelector(
	recipients recipient.Repository,
	reviews review.Repository,
	alarms alarm.Repository,
	prefCache PreferenceCache,
	prefTTL time.Duration,
	logger *logrus.Logger,
) *DueWorkSelector {
	return &DueWorkSelector{
		recipients: recipients,
		reviews:    reviews,
		alarms:     alarms,
		prefCache:  prefCache,
		prefTTL:    prefTTL,
		logger:     logger,
	}
}

// Select runs the staged filter for one recipient. It returns nil when the
// recipient is excluded; the relevant stage counter on report is updated
// either way. Store errors propagate to the caller.
func (s *DueWorkSelector) Select(ctx context.Context, rec *recipient.Recipient, now time.Time, forceNow bool, report *DispatchReport) (*DueWork, error) {
	report.noteChecked()

	pref, err := s.preference(ctx, rec.ID)
	if err != nil {
		if errors.Is(err, idb.ErrPreferenceNotFound) {
			report.noteRemindersDisabled()
			s.logger.Debugf("Recipient %d has no reminder preference, skipping", rec.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("load preference for recipient %d: %w", rec.ID, err)
	}
	if !pref.Enabled {
		report.noteRemindersDisabled()
		return nil, nil
	}

	if !pref.IsReminderTime(now, forceNow) {
		report.noteNotAtReminderTime()
		return nil, nil
	}

	dueReviews, err := s.reviews.CountDueForRecipient(ctx, rec.ID, now)
	if err != nil {
		return nil, fmt.Errorf("count due reviews for recipient %d: %w", rec.ID, err)
	}
	if dueReviews > 0 {
		alreadySent, err := s.reviews.WasReminderSent(ctx, rec.ID, now)
		if err != nil {
			return nil, fmt.Errorf("check reminder log for recipient %d: %w", rec.ID, err)
		}
		if alreadySent {
			// One review reminder per recipient per day.
			dueReviews = 0
		}
	}

	dueAlarms, err := s.alarms.ListDueForRecipient(ctx, rec.ID, now)
	if err != nil {
		return nil, fmt.Errorf("list due alarms for recipient %d: %w", rec.ID, err)
	}
	retryAlarms, err := s.alarms.ListRetryableForRecipient(ctx, rec.ID, now)
	if err != nil {
		return nil, fmt.Errorf("list retryable alarms for recipient %d: %w", rec.ID, err)
	}

	if dueReviews == 0 && len(dueAlarms) == 0 && len(retryAlarms) == 0 {
		report.noteNothingDue()
		return nil, nil
	}

	report.noteDue()
	return &DueWork{
		Recipient:      rec,
		Preference:     pref,
		DueReviewCount: dueReviews,
		DueAlarms:      dueAlarms,
		RetryAlarms:    retryAlarms,
	}, nil
}

// preference reads the recipient's preference through the TTL cache.
func (s *DueWorkSelector) preference(ctx context.Context, recipientID int64) (*recipient.Preference, error) {
	key := fmt.Sprintf("pref:%d", recipientID)
	if cached, ok := s.prefCache.Get(key); ok {
		if pref, ok := cached.(*recipient.Preference); ok {
			return pref, nil
		}
	}
	pref, err := s.recipients.GetPreference(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	s.prefCache.Set(key, pref, s.prefTTL)
	return pref, nil
}
