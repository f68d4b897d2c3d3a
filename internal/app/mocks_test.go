package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"study_reminder_bot/internal/domain/alarm"
	"study_reminder_bot/internal/domain/channel"
	"study_reminder_bot/internal/domain/recipient"
	"study_reminder_bot/internal/domain/review"
	idb "study_reminder_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// mockRecipientRepo implements recipient.Repository in memory.
type mockRecipientRepo struct {
	mu         sync.Mutex
	recipients map[int64]*recipient.Recipient
	prefs      map[int64]*recipient.Preference
	prefReads  map[int64]int

	listActiveErr error
	prefErr       error
}

func newMockRecipientRepo() *mockRecipientRepo {
	return &mockRecipientRepo{
		recipients: make(map[int64]*recipient.Recipient),
		prefs:      make(map[int64]*recipient.Preference),
		prefReads:  make(map[int64]int),
	}
}

func (m *mockRecipientRepo) addRecipient(id int64, pref *recipient.Preference) *recipient.Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := &recipient.Recipient{ID: id, TelegramID: id * 100, FirstName: fmt.Sprintf("user%d", id), IsActive: true}
	m.recipients[id] = rec
	if pref != nil {
		pref.RecipientID = id
		m.prefs[id] = pref
	}
	return rec
}

func (m *mockRecipientRepo) Create(ctx context.Context, rec *recipient.Recipient) error { return nil }

func (m *mockRecipientRepo) GetByID(ctx context.Context, id int64) (*recipient.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recipients[id]
	if !ok {
		return nil, idb.ErrRecipientNotFound
	}
	return rec, nil
}

func (m *mockRecipientRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*recipient.Recipient, error) {
	return nil, idb.ErrRecipientNotFound
}

func (m *mockRecipientRepo) Update(ctx context.Context, rec *recipient.Recipient) error { return nil }

func (m *mockRecipientRepo) ListActive(ctx context.Context) ([]*recipient.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listActiveErr != nil {
		return nil, m.listActiveErr
	}
	out := make([]*recipient.Recipient, 0, len(m.recipients))
	for id := int64(1); id <= int64(len(m.recipients))+100; id++ {
		if rec, ok := m.recipients[id]; ok && rec.IsActive {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockRecipientRepo) GetPreference(ctx context.Context, recipientID int64) (*recipient.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefReads[recipientID]++
	if m.prefErr != nil {
		return nil, m.prefErr
	}
	pref, ok := m.prefs[recipientID]
	if !ok {
		return nil, idb.ErrPreferenceNotFound
	}
	return pref, nil
}

func (m *mockRecipientRepo) SavePreference(ctx context.Context, pref *recipient.Preference) error {
	return nil
}

// mockReviewRepo implements review.Repository in memory.
type mockReviewRepo struct {
	mu        sync.Mutex
	dueCounts map[int64]int
	markers   map[string]bool

	countErr error
	markErr  error
}

func newMockReviewRepo() *mockReviewRepo {
	return &mockReviewRepo{
		dueCounts: make(map[int64]int),
		markers:   make(map[string]bool),
	}
}

func markerKey(recipientID int64, date time.Time) string {
	return fmt.Sprintf("%d:%s", recipientID, date.Format("2006-01-02"))
}

func (m *mockReviewRepo) Create(ctx context.Context, item *review.Item) error { return nil }

func (m *mockReviewRepo) GetByID(ctx context.Context, id int64) (*review.Item, error) {
	return nil, idb.ErrReviewItemNotFound
}

func (m *mockReviewRepo) Update(ctx context.Context, item *review.Item) error { return nil }

func (m *mockReviewRepo) CountDueForRecipient(ctx context.Context, recipientID int64, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.dueCounts[recipientID], nil
}

func (m *mockReviewRepo) ListDueForRecipient(ctx context.Context, recipientID int64, now time.Time, limit int) ([]*review.Item, error) {
	return nil, nil
}

func (m *mockReviewRepo) WasReminderSent(ctx context.Context, recipientID int64, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markers[markerKey(recipientID, date)], nil
}

func (m *mockReviewRepo) MarkReminderSent(ctx context.Context, recipientID int64, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	m.markers[markerKey(recipientID, date)] = true
	return nil
}

// mockAlarmRepo implements alarm.Repository in memory.
type mockAlarmRepo struct {
	mu        sync.Mutex
	events    map[int64]*alarm.Event
	due       map[int64][]*alarm.Instance
	retryable map[int64][]*alarm.Instance
	updated   []*alarm.Instance

	instances map[string]*alarm.Instance // materialization identity
	nextID    int64
}

func newMockAlarmRepo() *mockAlarmRepo {
	return &mockAlarmRepo{
		events:    make(map[int64]*alarm.Event),
		due:       make(map[int64][]*alarm.Instance),
		retryable: make(map[int64][]*alarm.Instance),
		instances: make(map[string]*alarm.Instance),
	}
}

func (m *mockAlarmRepo) CreateDefinition(ctx context.Context, def *alarm.Definition) error { return nil }

func (m *mockAlarmRepo) GetDefinition(ctx context.Context, id int64) (*alarm.Definition, error) {
	return nil, idb.ErrDefinitionNotFound
}

func (m *mockAlarmRepo) CreateEvent(ctx context.Context, event *alarm.Event) error { return nil }

func (m *mockAlarmRepo) GetEvent(ctx context.Context, id int64) (*alarm.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, idb.ErrEventNotFound
	}
	return ev, nil
}

func (m *mockAlarmRepo) CreateInstance(ctx context.Context, inst *alarm.Instance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%d:%d:%d", inst.DefinitionID, inst.EventID, inst.RecipientID)
	if existing, ok := m.instances[key]; ok {
		*inst = *existing
		return false, nil
	}
	m.nextID++
	inst.ID = m.nextID
	stored := *inst
	m.instances[key] = &stored
	return true, nil
}

func (m *mockAlarmRepo) GetInstanceByID(ctx context.Context, id int64) (*alarm.Instance, error) {
	return nil, idb.ErrInstanceNotFound
}

func (m *mockAlarmRepo) UpdateInstance(ctx context.Context, inst *alarm.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *inst
	m.updated = append(m.updated, &stored)
	return nil
}

func (m *mockAlarmRepo) ListDueForRecipient(ctx context.Context, recipientID int64, now time.Time) ([]*alarm.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.due[recipientID], nil
}

func (m *mockAlarmRepo) ListRetryableForRecipient(ctx context.Context, recipientID int64, now time.Time) ([]*alarm.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryable[recipientID], nil
}

// mockChannel implements channel.Channel with per-recipient failure and
// panic injection.
type mockChannel struct {
	mu        sync.Mutex
	delivered []int64
	failFor   map[int64]error
	panicFor  map[int64]bool
}

func newMockChannel() *mockChannel {
	return &mockChannel{
		failFor:  make(map[int64]error),
		panicFor: make(map[int64]bool),
	}
}

func (m *mockChannel) Deliver(ctx context.Context, recipientID int64, n channel.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicFor[recipientID] {
		panic("channel blew up")
	}
	if err := m.failFor[recipientID]; err != nil {
		return err
	}
	m.delivered = append(m.delivered, recipientID)
	return nil
}

func (m *mockChannel) deliveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

// mockLocker implements RunLocker.
type mockLocker struct {
	mu         sync.Mutex
	acquireErr error
	acquired   int
	released   int
}

func (m *mockLocker) Acquire(ctx context.Context, token string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquireErr != nil {
		return m.acquireErr
	}
	m.acquired++
	return nil
}

func (m *mockLocker) Release(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
	return nil
}
