package alarm

import (
	"fmt"
	"time"
)

// OffsetUnit is the unit of a definition's offset before the anchor.
type OffsetUnit string

const (
	UnitMinutes OffsetUnit = "minutes"
	UnitHours   OffsetUnit = "hours"
	UnitDays    OffsetUnit = "days"
	UnitWeeks   OffsetUnit = "weeks"
)

// Kind selects the delivery channel for instances of a definition.
type Kind string

const (
	KindNotification Kind = "notification"
	KindEmail        Kind = "email"
)

// minutesPerUnit converts offset units to minutes.
var minutesPerUnit = map[OffsetUnit]int64{
	UnitMinutes: 1,
	UnitHours:   60,
	UnitDays:    1440,
	UnitWeeks:   10080,
}

// Definition describes how far before an anchor a reminder fires and over
// which channel. A definition is immutable once an instance references it;
// editing it does not change already-materialized instances.
type Definition struct {
	ID             int64
	OffsetDuration int
	OffsetUnit     OffsetUnit
	Kind           Kind
	CreatedAt      time.Time
}

// Validate checks the definition's invariants before it is persisted.
func (d *Definition) Validate() error {
	if d.OffsetDuration <= 0 {
		return fmt.Errorf("offset duration must be positive, got %d", d.OffsetDuration)
	}
	if _, ok := minutesPerUnit[d.OffsetUnit]; !ok {
		return fmt.Errorf("unknown offset unit %q", d.OffsetUnit)
	}
	if d.Kind != KindNotification && d.Kind != KindEmail {
		return fmt.Errorf("unknown alarm kind %q", d.Kind)
	}
	return nil
}

// Offset returns the definition's offset as a duration.
func (d *Definition) Offset() time.Duration {
	return time.Duration(int64(d.OffsetDuration)*minutesPerUnit[d.OffsetUnit]) * time.Minute
}

// TriggerTime computes the instant an instance of this definition fires for
// the given anchor. Sub-minute precision of the anchor is preserved.
func (d *Definition) TriggerTime(anchor time.Time) time.Time {
	return anchor.Add(-d.Offset())
}
