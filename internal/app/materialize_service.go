package app

import (
	"context"
	"fmt"

	"study_reminder_bot/internal/domain/alarm"

	"github.com/sirupsen/logrus"
)

// MaterializeService creates alarm instances when an anchored event is
// scheduled: one pending instance per (definition, recipient), trigger time
// computed from the definition's offset against the event start.
type MaterializeService struct {
	alarms alarm.Repository
	logger *logrus.Logger
}

func NewMaterializeService(alarms alarm.Repository, logger *logrus.Logger) *MaterializeService {
	return &MaterializeService{alarms: alarms, logger: logger}
}

// MaterializeEvent materializes alarms for the event and reports how many
// instances were newly created. Re-materializing the same event is safe: an
// existing (definition, event, recipient) triple is left untouched.
func (s *MaterializeService) MaterializeEvent(ctx context.Context, event *alarm.Event, defs []*alarm.Definition, recipientIDs []int64) (int, error) {
	created := 0
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return created, fmt.Errorf("definition %d: %w", def.ID, err)
		}
		triggerAt := def.TriggerTime(event.StartAt)
		for _, recipientID := range recipientIDs {
			inst := &alarm.Instance{
				DefinitionID: def.ID,
				EventID:      event.ID,
				RecipientID:  recipientID,
				Kind:         def.Kind,
				TriggerAt:    triggerAt,
				Status:       alarm.StatusPending,
			}
			isNew, err := s.alarms.CreateInstance(ctx, inst)
			if err != nil {
				return created, fmt.Errorf("materialize alarm (def %d, event %d, recipient %d): %w",
					def.ID, event.ID, recipientID, err)
			}
			if isNew {
				created++
			} else {
				s.logger.Debugf("Alarm for definition %d, event %d, recipient %d already materialized",
					def.ID, event.ID, recipientID)
			}
		}
	}
	s.logger.Infof("Materialized %d alarm instance(s) for event %d", created, event.ID)
	return created, nil
}
