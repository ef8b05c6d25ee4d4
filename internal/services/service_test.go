package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"engagement-service/internal/config"
	"engagement-service/internal/engagement"
	"engagement-service/internal/logging"
	"engagement-service/internal/memstore"
	"engagement-service/internal/models"
	"engagement-service/internal/sequence"
)

const testPolicy = `
sla:
  due_hours: 24
follow_up:
  threshold_days: 3
quiet_window:
  enabled: true
  start_hour: 22
  end_hour: 8
  timezone: UTC
pipelines:
  entrenador:
    terminal_phases: [cierre_ganado, descartado]
    discarded_phase: descartado
  gimnasio:
    terminal_phases: [socio_activo, descartado]
    discarded_phase: descartado
templates:
  default:
    - "Hola {{name}}"
  interes:
    - "{{name}}, ¿agendamos?"
`

// Monday 10:00 UTC, outside the quiet window.
var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, title)
	return r.err
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

type fixture struct {
	svc      *Service
	store    *memstore.Store
	clock    *engagement.FixedClock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, queueSize int) *fixture {
	t.Helper()
	policy, err := config.ParseEngagement([]byte(testPolicy))
	require.NoError(t, err)

	var cfg config.Config
	cfg.Notification.QueueSize = queueSize
	cfg.Notification.MaxWorkers = 2
	cfg.Notification.Channels = []string{"recorder"}

	store := memstore.New()
	clock := engagement.NewFixedClock(t0)
	stores := Stores{Conversations: store, Deals: store, Leads: store, Notifications: store}
	svc, err := New(stores, sequence.NewMemory(), policy, clock, logging.Discard(), cfg)
	require.NoError(t, err)

	n := &recordingNotifier{}
	svc.RegisterNotifier("recorder", n)
	return &fixture{svc: svc, store: store, clock: clock, notifier: n}
}

func (f *fixture) drain() []models.Task {
	var out []models.Task
	for {
		select {
		case task := <-f.svc.tasks:
			out = append(out, task)
		default:
			return out
		}
	}
}

func at(t time.Time) *time.Time { return &t }

func TestNew_RequiresStores(t *testing.T) {
	_, err := New(Stores{}, nil, config.Policy{}, nil, logging.Discard(), config.Config{})
	require.Error(t, err)
}

func TestEvaluateNow_QueuesAndMarksAlerted(t *testing.T) {
	f := newFixture(t, 10)
	f.store.PutDeal(models.Deal{ID: "d1", LeadID: "l1", Name: "Ana Ruiz", BusinessType: "entrenador",
		Phase: "interes", CreatedAt: t0.Add(-30 * 24 * time.Hour), LastContact: at(t0.Add(-5 * 24 * time.Hour))})
	f.store.PutDeal(models.Deal{ID: "d2", LeadID: "l2", Name: "Luis", BusinessType: "gimnasio",
		Phase: "captacion", CreatedAt: t0.Add(-24 * time.Hour)})

	report, err := f.svc.EvaluateNow(context.Background())
	require.NoError(t, err)
	require.False(t, report.Suppressed)
	require.Equal(t, 1, report.Queued)
	require.Len(t, report.Alerts, 1)
	require.Equal(t, "d1", report.Alerts[0].DealID)
	require.Equal(t, 5, report.Alerts[0].DaysWithoutContact)
	require.Equal(t, "Ana, ¿agendamos?", report.Alerts[0].SuggestedMessage)
	require.True(t, report.EvaluatedAt.Equal(t0))

	d, err := f.store.GetDeal(context.Background(), "d1")
	require.NoError(t, err)
	require.True(t, d.FollowUpNotificationSent)

	tasks := f.drain()
	require.Len(t, tasks, 1)
	require.Equal(t, models.TaskTypeFollowUp, tasks[0].Type)
	require.Equal(t, "d1", tasks[0].DealID)
	require.Equal(t, "l1", tasks[0].LeadID)
	require.False(t, tasks[0].Silenced)

	again, err := f.svc.EvaluateNow(context.Background())
	require.NoError(t, err)
	require.Empty(t, again.Alerts)
	require.Empty(t, f.drain())
}

func TestEvaluateNow_FullQueueLeavesDealUnalerted(t *testing.T) {
	f := newFixture(t, 1)
	for _, id := range []string{"d1", "d2"} {
		f.store.PutDeal(models.Deal{ID: id, LeadID: "l-" + id, Name: "Ana", BusinessType: "entrenador",
			Phase: "interes", CreatedAt: t0.Add(-30 * 24 * time.Hour), LastContact: at(t0.Add(-5 * 24 * time.Hour))})
	}

	report, err := f.svc.EvaluateNow(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Alerts, 2)
	require.Equal(t, 1, report.Queued)

	first := f.drain()
	require.Len(t, first, 1)
	queuedID := first[0].DealID

	sent := 0
	for _, id := range []string{"d1", "d2"} {
		d, err := f.store.GetDeal(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, id == queuedID, d.FollowUpNotificationSent)
		if d.FollowUpNotificationSent {
			sent++
		}
	}
	require.Equal(t, 1, sent)

	report, err = f.svc.EvaluateNow(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Alerts, 1)
	require.NotEqual(t, queuedID, report.Alerts[0].DealID)
	require.Equal(t, 1, report.Queued)
	require.Len(t, f.drain(), 1)
}

func TestEvaluateNow_QuietWindowHoldsAlerts(t *testing.T) {
	f := newFixture(t, 10)
	f.clock.Set(time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC))
	f.store.PutDeal(models.Deal{ID: "d1", Name: "Ana", BusinessType: "entrenador", Phase: "interes",
		CreatedAt: t0.Add(-10 * 24 * time.Hour)})

	report, err := f.svc.EvaluateNow(context.Background())
	require.NoError(t, err)
	require.True(t, report.Suppressed)
	require.Len(t, report.Alerts, 1)
	require.Zero(t, report.Queued)
	require.Empty(t, f.drain())

	d, err := f.store.GetDeal(context.Background(), "d1")
	require.NoError(t, err)
	require.False(t, d.FollowUpNotificationSent)

	f.clock.Set(time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC))
	report, err = f.svc.EvaluateNow(context.Background())
	require.NoError(t, err)
	require.False(t, report.Suppressed)
	require.Equal(t, 1, report.Queued)
}

func TestEvaluateNow_DealWithoutTimestamps(t *testing.T) {
	f := newFixture(t, 10)
	f.store.PutDeal(models.Deal{ID: "broken", Name: "X", BusinessType: "gimnasio", Phase: "captacion"})

	_, err := f.svc.EvaluateNow(context.Background())
	require.True(t, engagement.IsDataIntegrityError(err))
}

func TestMarkContacted_RearmsAfterThreshold(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	f.store.PutDeal(models.Deal{ID: "d1", Name: "Ana", BusinessType: "entrenador", Phase: "interes",
		CreatedAt: t0.Add(-10 * 24 * time.Hour), FollowUpNotificationSent: true})

	d, err := f.svc.MarkContacted(ctx, "d1")
	require.NoError(t, err)
	require.False(t, d.FollowUpNotificationSent)
	require.True(t, d.LastContact.Equal(t0))

	alerts, err := f.svc.GenerateFollowUpAlerts(ctx, t0, 3)
	require.NoError(t, err)
	require.Empty(t, alerts)

	alerts, err = f.svc.GenerateFollowUpAlerts(ctx, t0.Add(3*24*time.Hour), -1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestPostponeAndDiscard(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	f.store.PutDeal(models.Deal{ID: "d1", Name: "Ana", BusinessType: "gimnasio", Phase: "interes", CreatedAt: t0})

	_, err := f.svc.Postpone(ctx, "d1", 0)
	require.True(t, engagement.IsInvalidInput(err))

	d, err := f.svc.Postpone(ctx, "d1", 2)
	require.NoError(t, err)
	require.True(t, d.LastContact.Equal(t0.Add(48*time.Hour)))

	d, err = f.svc.Discard(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "descartado", d.Phase)
	require.True(t, d.FollowUpNotificationSent)

	alerts, err := f.svc.GenerateFollowUpAlerts(ctx, t0.Add(100*24*time.Hour), 3)
	require.NoError(t, err)
	require.Empty(t, alerts)

	_, err = f.svc.MarkContacted(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDiscard_UnknownBusinessType(t *testing.T) {
	f := newFixture(t, 10)
	f.store.PutDeal(models.Deal{ID: "d1", Name: "Ana", BusinessType: "yoga", Phase: "interes", CreatedAt: t0})
	_, err := f.svc.Discard(context.Background(), "d1")
	require.True(t, engagement.IsConfigurationError(err))
}

func TestAppendMessage_AssignsSequenceAndNotifies(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	f.store.PutLead(models.Lead{ID: "l1", Name: "Marta Gil", BusinessType: "entrenador", CreatedAt: t0, UpdatedAt: t0})

	first, err := f.svc.AppendMessage(ctx, models.Message{LeadID: "l1", Direction: models.DirectionInbound, Body: "hola"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, int64(1), first.Seq)
	require.True(t, first.Timestamp.Equal(t0))

	second, err := f.svc.AppendMessage(ctx, models.Message{LeadID: "l1", Direction: models.DirectionOutbound, Timestamp: t0.Add(time.Minute)})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.Seq)

	tasks := f.drain()
	require.Len(t, tasks, 1)
	require.Equal(t, models.TaskTypeNewMessage, tasks[0].Type)
	require.Equal(t, "Nuevo mensaje de Marta Gil", tasks[0].Subject)
	require.False(t, tasks[0].Silenced)

	hours, err := f.svc.HoursWithoutResponse(ctx, "l1", t0.Add(48*time.Hour))
	require.NoError(t, err)
	require.Zero(t, hours)
}

func TestAppendMessage_RejectsInvalid(t *testing.T) {
	f := newFixture(t, 10)
	_, err := f.svc.AppendMessage(context.Background(), models.Message{LeadID: "l1", Direction: "sideways"})
	require.True(t, engagement.IsDataIntegrityError(err))
}

func TestOnMessageAppended_SilencedInQuietWindow(t *testing.T) {
	f := newFixture(t, 10)
	f.clock.Set(time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC))

	_, err := f.svc.AppendMessage(context.Background(), models.Message{LeadID: "ghost", Direction: models.DirectionInbound})
	require.NoError(t, err)

	tasks := f.drain()
	require.Len(t, tasks, 1)
	require.True(t, tasks[0].Silenced)
	require.Equal(t, "Nuevo mensaje de ghost", tasks[0].Subject)

	f.svc.handleTask(tasks[0])
	require.Empty(t, f.notifier.titles())
	logged := f.store.Notifications()
	require.Len(t, logged, 1)
	require.Equal(t, models.NotificationSilenced, logged[0].Status)
}

func TestMarkRead_FirstReadWins(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	m, err := f.svc.AppendMessage(ctx, models.Message{LeadID: "l1", Direction: models.DirectionOutbound, Timestamp: t0})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	read, err := f.svc.MarkRead(ctx, "l1", m.ID)
	require.NoError(t, err)
	require.True(t, read.ReadAt.Equal(t0.Add(time.Hour)))

	f.clock.Advance(time.Hour)
	read, err = f.svc.MarkRead(ctx, "l1", m.ID)
	require.NoError(t, err)
	require.True(t, read.ReadAt.Equal(t0.Add(time.Hour)))

	_, err = f.svc.MarkRead(ctx, "l1", "nope")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestHandleTask_RecordsOutcome(t *testing.T) {
	f := newFixture(t, 10)

	f.svc.handleTask(newTask(models.TaskTypeFollowUp, "ok", "body", t0))
	f.notifier.err = errors.New("smtp down")
	f.svc.handleTask(newTask(models.TaskTypeFollowUp, "ko", "body", t0))
	f.svc.handleTask(models.Task{RequestID: "not-a-uuid"})

	logged := f.store.Notifications()
	require.Len(t, logged, 2)
	require.Equal(t, models.NotificationSuccess, logged[0].Status)
	require.Equal(t, "recorder", logged[0].Channel)
	require.Equal(t, models.NotificationFailed, logged[1].Status)
	require.Equal(t, "smtp down", logged[1].Error)
	require.Equal(t, []string{"ok", "ko"}, f.notifier.titles())
}

func TestQueueTask_DropsWhenFull(t *testing.T) {
	f := newFixture(t, 1)
	require.True(t, f.svc.QueueTask(newTask(models.TaskTypeFollowUp, "a", "", t0)))
	require.False(t, f.svc.QueueTask(newTask(models.TaskTypeFollowUp, "b", "", t0)))
}

func TestWorkerPool_DispatchesQueuedTasks(t *testing.T) {
	f := newFixture(t, 10)
	var wg sync.WaitGroup
	f.svc.Start(&wg)

	f.store.PutLead(models.Lead{ID: "l1", Name: "Marta", CreatedAt: t0, UpdatedAt: t0})
	_, err := f.svc.AppendMessage(context.Background(), models.Message{LeadID: "l1", Direction: models.DirectionInbound})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(f.store.Notifications()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"Nuevo mensaje de Marta"}, f.notifier.titles())

	f.svc.Stop()
	wg.Wait()
}

func TestRankBusinessType(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	for _, tc := range []struct {
		id    string
		hours int
	}{{"A", 26}, {"B", 10}, {"C", 30}} {
		f.store.PutLead(models.Lead{ID: tc.id, Name: tc.id, BusinessType: "gimnasio", CreatedAt: t0, UpdatedAt: t0})
		_, err := f.svc.AppendMessage(ctx, models.Message{LeadID: tc.id, Direction: models.DirectionInbound,
			Timestamp: t0.Add(-time.Duration(tc.hours) * time.Hour)})
		require.NoError(t, err)
	}
	f.store.PutLead(models.Lead{ID: "other", Name: "other", BusinessType: "entrenador", CreatedAt: t0, UpdatedAt: t0})

	ranked, err := f.svc.RankBusinessType(ctx, "gimnasio", t0)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	require.Equal(t, "C", ranked[0].Lead.ID)
	require.Equal(t, "A", ranked[1].Lead.ID)
	require.Equal(t, "B", ranked[2].Lead.ID)
	require.True(t, ranked[0].Critical)
	require.Equal(t, models.SlaOverdue, ranked[0].Sla)
	require.False(t, ranked[2].Critical)

	status, err := f.svc.ClassifySla(ctx, "B", t0)
	require.NoError(t, err)
	require.Equal(t, models.SlaOnTime, status)

	status, err = f.svc.ClassifySla(ctx, "unknown", t0)
	require.NoError(t, err)
	require.Equal(t, models.SlaOnTime, status)
}

func TestIsNotificationSuppressed(t *testing.T) {
	f := newFixture(t, 10)
	require.True(t, f.svc.IsNotificationSuppressed(time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC)))
	require.True(t, f.svc.IsNotificationSuppressed(time.Date(2024, 3, 4, 3, 0, 0, 0, time.UTC)))
	require.False(t, f.svc.IsNotificationSuppressed(time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)))
}

func TestDrain(t *testing.T) {
	f := newFixture(t, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.True(t, f.svc.QueueTask(newTask(models.TaskTypeFollowUp, "a", "", t0)))
	require.False(t, f.svc.Drain(ctx))

	var wg sync.WaitGroup
	f.svc.Start(&wg)
	require.True(t, f.svc.Drain(context.Background()))
	require.Equal(t, []string{"a"}, f.notifier.titles())
	f.svc.Stop()
	wg.Wait()
}
