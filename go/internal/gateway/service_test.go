package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/designjam/countdown/go/internal/clock"
	"github.com/designjam/countdown/go/internal/models"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu         sync.Mutex
	changes    []PhaseChangedPayload
	err        error
	closed     bool
	afterClose int
}

func (p *recordingPublisher) PublishPhaseChange(_ context.Context, event *Event, change PhaseChangedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.afterClose++
		return errors.New("publisher closed")
	}
	if event.Type != EventTypePhaseChanged {
		return errors.New("unexpected event type")
	}
	p.changes = append(p.changes, change)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) recorded() []PhaseChangedPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PhaseChangedPayload(nil), p.changes...)
}

func schedule() models.CompetitionConfig {
	return models.CompetitionConfig{
		SubmissionStart: models.TimestampPtr(start.Add(2 * time.Second)),
		SubmissionEnd:   models.TimestampPtr(start.Add(time.Hour)),
	}
}

func drainEvents(cm *ConnectionManager) []EventType {
	var types []EventType
	for {
		select {
		case event := <-cm.broadcastCh:
			types = append(types, event.Type)
		default:
			return types
		}
	}
}

func TestService_DetectsPhaseChanges(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(DefaultConfig(), pub)
	cfg := schedule()

	svc.HandleSnapshot(clock.Evaluate(&cfg, start))
	svc.HandleSnapshot(clock.Evaluate(&cfg, start.Add(time.Second)))
	svc.HandleSnapshot(clock.Evaluate(&cfg, start.Add(2*time.Second)))
	require.NoError(t, svc.Stop())

	changes := pub.recorded()
	require.Len(t, changes, 2)

	assert.Empty(t, changes[0].Previous)
	assert.Equal(t, models.PhaseWaitingForSubmissions, changes[0].Phase)
	assert.Equal(t, models.BoundarySubmissionStart, changes[0].Boundary)

	assert.Equal(t, models.PhaseWaitingForSubmissions, changes[1].Previous)
	assert.Equal(t, models.PhaseSubmissionsOpen, changes[1].Phase)
	assert.Equal(t, models.BoundarySubmissionEnd, changes[1].Boundary)
	assert.Equal(t, start.Add(2*time.Second), changes[1].ChangedAt)
	assert.True(t, pub.closed)

	assert.Equal(t, []EventType{
		EventTypeCountdownTick, EventTypePhaseChanged,
		EventTypeCountdownTick,
		EventTypeCountdownTick, EventTypePhaseChanged,
	}, drainEvents(svc.connectionManager))
}

func TestService_BoundaryChangeWithinSamePhase(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(DefaultConfig(), pub)
	cfg := models.CompetitionConfig{
		SubmissionEnd: models.TimestampPtr(start.Add(time.Second)),
		VotingStart:   models.TimestampPtr(start.Add(time.Hour)),
	}

	svc.HandleSnapshot(clock.Evaluate(&cfg, start))
	svc.HandleSnapshot(clock.Evaluate(&cfg, start.Add(time.Second)))
	require.NoError(t, svc.Stop())

	changes := pub.recorded()
	require.Len(t, changes, 2)
	assert.Equal(t, models.PhaseSubmissionsOpen, changes[1].Previous)
	assert.Equal(t, models.PhaseSubmissionsOpen, changes[1].Phase)
	assert.Equal(t, models.BoundaryVotingStart, changes[1].Boundary)
}

func TestService_ConfigUnavailableOnce(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(DefaultConfig(), pub)
	cfg := schedule()

	svc.HandleSnapshot(clock.Evaluate(&cfg, start))
	svc.HandleSnapshot(clock.Evaluate(nil, start.Add(time.Second)))
	svc.HandleSnapshot(clock.Evaluate(nil, start.Add(2*time.Second)))
	// recovering into the same phase is not a transition
	svc.HandleSnapshot(clock.Evaluate(&cfg, start.Add(time.Second)))
	require.NoError(t, svc.Stop())

	assert.Len(t, pub.recorded(), 1)
	assert.Equal(t, []EventType{
		EventTypeCountdownTick, EventTypePhaseChanged,
		EventTypeCountdownTick, EventTypeConfigUnavailable,
		EventTypeCountdownTick,
		EventTypeCountdownTick,
	}, drainEvents(svc.connectionManager))

	latest, ok := svc.Latest()
	require.True(t, ok)
	assert.False(t, latest.Loading)
}

func TestService_PublishErrorDoesNotBlock(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("no responders")}
	svc := NewService(DefaultConfig(), pub)
	cfg := schedule()

	svc.HandleSnapshot(clock.Evaluate(&cfg, start))
	require.NoError(t, svc.Stop())
	assert.Len(t, pub.recorded(), 1)
}

func TestService_NoPublishAfterStop(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(DefaultConfig(), pub)
	cfg := schedule()

	svc.HandleSnapshot(clock.Evaluate(&cfg, start))
	require.NoError(t, svc.Stop())
	require.Len(t, pub.recorded(), 1)

	svc.HandleSnapshot(clock.Evaluate(&cfg, start.Add(2*time.Second)))
	require.NoError(t, svc.Stop())

	assert.Len(t, pub.recorded(), 1)
	assert.Zero(t, pub.afterClose)

	// viewers still get the change
	events := drainEvents(svc.connectionManager)
	assert.Equal(t, EventTypePhaseChanged, events[len(events)-1])
}

func TestService_StopRacesSnapshots(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(DefaultConfig(), pub)
	phases := []models.CompetitionConfig{
		{SubmissionStart: models.TimestampPtr(start.Add(time.Hour))},
		{SubmissionEnd: models.TimestampPtr(start.Add(time.Hour))},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			cfg := phases[i%2]
			svc.HandleSnapshot(clock.Evaluate(&cfg, start))
		}
	}()

	require.NoError(t, svc.Stop())
	<-done

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Zero(t, pub.afterClose)
	assert.True(t, pub.closed)
}

func TestService_WithoutPublisher(t *testing.T) {
	svc := NewService(DefaultConfig(), nil)
	cfg := schedule()

	svc.HandleSnapshot(clock.Evaluate(&cfg, start))
	assert.NoError(t, svc.Stop())
}

func TestPhaseChangedPayload_DedupKey(t *testing.T) {
	target := start.Add(time.Hour)
	change := PhaseChangedPayload{
		Phase:    models.PhaseVotingOpen,
		Boundary: models.BoundaryVotingEnd,
		Target:   &target,
	}
	assert.Equal(t, "voting_open.voting_end.1772370000", change.DedupKey())
	assert.Equal(t, "competition.phase.voting_open", phaseSubject("competition.phase", change))

	over := PhaseChangedPayload{Phase: models.PhaseCompetitionOver}
	assert.Equal(t, "competition_over..none", over.DedupKey())
}

func TestParseEventPayload(t *testing.T) {
	event, err := NewEvent(EventTypeConfigUnavailable, start, ConfigUnavailablePayload{Since: start})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)

	payload, err := ParseEventPayload(event)
	require.NoError(t, err)
	assert.Equal(t, ConfigUnavailablePayload{Since: start}, payload)

	_, err = ParseEventPayload(&Event{Type: "Bogus"})
	assert.Error(t, err)
}
