package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wagerdeck/wagerdeck-bot/internal/catalog"
	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
	apperrors "github.com/wagerdeck/wagerdeck-bot/internal/errors"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) Create(ctx context.Context, rec *domain.BetRecord) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedger) Update(ctx context.Context, id int64, rec *domain.BetRecord) error {
	args := m.Called(ctx, id, rec)
	return args.Error(0)
}

func (m *mockLedger) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockLedger) AttachPublication(ctx context.Context, id, channelID int64, messageID int) error {
	args := m.Called(ctx, id, channelID, messageID)
	return args.Error(0)
}

func (m *mockLedger) MarkConfirmed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, rec *domain.BetRecord) ([]byte, error) {
	args := m.Called(ctx, rec)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channelID int64, artifact []byte, caption string) (int, error) {
	args := m.Called(ctx, channelID, artifact, caption)
	return args.Int(0), args.Error(1)
}

type stubDirectory struct {
	items []domain.Item
}

func (s *stubDirectory) Lookup(ctx context.Context, category string, scopeID int64, limit int) ([]domain.Item, error) {
	return s.items, nil
}

func (s *stubDirectory) Remember(ctx context.Context, item domain.Item) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(dir catalog.Directory) *catalog.Catalog {
	return catalog.New(dir, catalog.Curation{
		Categories:       []string{"Soccer", "Tennis"},
		Destinations:     []catalog.Destination{{Label: "Main", ChannelID: -100123}},
		StakeLadder:      []float64{1, 2},
		MaxSelectOptions: 24,
	}, testLogger())
}

func newTestEngine(ledger Ledger, renderer Renderer, publisher Publisher, dir catalog.Directory) *Engine {
	return NewEngine(testCatalog(dir), ledger, renderer, publisher, Config{
		BuildTTL:  time.Minute,
		BrowseTTL: time.Minute,
	}, testLogger())
}

func choose(v string) catalog.Input { return catalog.Input{Kind: catalog.InputChoice, Value: v} }
func typed(v string) catalog.Input  { return catalog.Input{Kind: catalog.InputText, Value: v} }

const owner = int64(1001)

// driveToStake walks a fresh single-mode session up to the stake prompt via
// manual entry. Directory-less catalogs skip the selection step entirely.
func driveToStake(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()

	res, err := e.Start(ctx, owner, -42, catalog.ModeSingle)
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepCategory, res.Spec.Step)

	res, err = e.Advance(ctx, owner, choose("Soccer"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepLineType, res.Spec.Step)

	res, err = e.Advance(ctx, owner, choose("event"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepDetails, res.Spec.Step)

	res, err = e.Advance(ctx, owner, typed("United\nCity\nspread -1.5\n-110"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepStake, res.Spec.Step)
}

func TestSingleBetFullFlow(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	renderer := new(mockRenderer)
	publisher := new(mockPublisher)

	artifact := []byte("png-bytes")
	ledger.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil).Once()
	renderer.On("Render", mock.Anything, mock.Anything).Return(artifact, nil)
	ledger.On("Update", mock.Anything, int64(42), mock.MatchedBy(func(rec *domain.BetRecord) bool {
		return rec.Kind == domain.KindSingle && rec.Label == "United" && rec.Stake == 2
	})).Return(nil).Once()
	publisher.On("Publish", mock.Anything, int64(-100123), artifact, mock.Anything).Return(777, nil).Once()
	ledger.On("AttachPublication", mock.Anything, int64(42), int64(-100123), 777).Return(nil).Once()
	ledger.On("MarkConfirmed", mock.Anything, int64(42)).Return(nil).Once()

	e := newTestEngine(ledger, renderer, publisher, nil)
	driveToStake(t, e)

	// The stake transition is the first persist and the preview render point.
	res, err := e.Advance(ctx, owner, choose("2"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepDestination, res.Spec.Step)
	assert.Equal(t, artifact, res.PreviewData)
	assert.False(t, res.Replace, "a fresh attachment cannot replace the previous prompt")

	res, err = e.Advance(ctx, owner, choose("-100123"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepConfirm, res.Spec.Step)
	assert.NotEmpty(t, res.Spec.Body)

	res, err = e.Advance(ctx, owner, choose("confirm"))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	require.NotNil(t, res.Published)
	assert.Equal(t, int64(42), res.Published.RecordID)
	assert.Equal(t, int64(-100123), res.Published.ChannelID)
	assert.Equal(t, 777, res.Published.MessageID)

	assert.False(t, e.Active(owner))
	ledger.AssertExpectations(t)
	publisher.AssertExpectations(t)
	ledger.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestStartReplacesPreviousSession(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	e := newTestEngine(ledger, nil, nil, nil)

	_, err := e.Start(ctx, owner, -42, catalog.ModeSingle)
	require.NoError(t, err)
	first := e.lookup(owner)
	require.NotNil(t, first)

	_, err = e.Start(ctx, owner, -42, catalog.ModeParlay)
	require.NoError(t, err)

	assert.True(t, first.Closed())
	second := e.lookup(owner)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, catalog.ModeParlay, second.Mode)
}

func TestAdvanceWithoutSession(t *testing.T) {
	e := newTestEngine(new(mockLedger), nil, nil, nil)

	_, err := e.Advance(context.Background(), owner, choose("Soccer"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestAdvanceBusyDropsDuplicate(t *testing.T) {
	ctx := context.Background()

	e := newTestEngine(new(mockLedger), nil, nil, nil)
	_, err := e.Start(ctx, owner, -42, catalog.ModeSingle)
	require.NoError(t, err)

	s := e.lookup(owner)
	require.NotNil(t, s)
	require.True(t, s.inFlight.CompareAndSwap(false, true))
	defer s.inFlight.Store(false)

	res, err := e.Advance(ctx, owner, choose("Soccer"))
	require.NoError(t, err)
	assert.True(t, res.Busy)
	assert.Nil(t, res.Spec)
	assert.Empty(t, s.Draft.Get(domain.FieldCategory))
}

func TestValidationFailureKeepsStep(t *testing.T) {
	ctx := context.Background()

	e := newTestEngine(new(mockLedger), nil, nil, nil)
	_, err := e.Start(ctx, owner, -42, catalog.ModeSingle)
	require.NoError(t, err)

	res, err := e.Advance(ctx, owner, choose("Curling"))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Notice)
	assert.Nil(t, res.Spec)

	// The same step accepts a valid value afterwards.
	res, err = e.Advance(ctx, owner, choose("Soccer"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepLineType, res.Spec.Step)
}

func TestCancelDeletesUnconfirmedRecord(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	renderer := new(mockRenderer)
	ledger.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil).Once()
	renderer.On("Render", mock.Anything, mock.Anything).Return([]byte("png"), nil)
	ledger.On("Delete", mock.Anything, int64(42)).Return(nil).Once()

	e := newTestEngine(ledger, renderer, nil, nil)
	driveToStake(t, e)

	_, err := e.Advance(ctx, owner, choose("2"))
	require.NoError(t, err)

	require.NoError(t, e.Cancel(ctx, owner, "user request"))
	assert.False(t, e.Active(owner))
	ledger.AssertExpectations(t)

	// A second cancel has nothing to tear down.
	assert.ErrorIs(t, e.Cancel(ctx, owner, "user request"), ErrNoSession)
}

func TestPublishFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	renderer := new(mockRenderer)
	publisher := new(mockPublisher)

	ledger.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil).Once()
	renderer.On("Render", mock.Anything, mock.Anything).Return([]byte("png"), nil)
	ledger.On("Update", mock.Anything, int64(42), mock.Anything).Return(nil).Once()
	publisher.On("Publish", mock.Anything, int64(-100123), mock.Anything, mock.Anything).
		Return(0, apperrors.NewTerminalError("channel rejected the slip", errors.New("403"))).Once()

	e := newTestEngine(ledger, renderer, publisher, nil)
	driveToStake(t, e)

	_, err := e.Advance(ctx, owner, choose("2"))
	require.NoError(t, err)
	_, err = e.Advance(ctx, owner, choose("-100123"))
	require.NoError(t, err)

	res, err := e.Advance(ctx, owner, choose("confirm"))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Nil(t, res.Published)
	assert.Contains(t, res.Notice, "Publishing failed")

	assert.False(t, e.Active(owner))
	// The terminal path keeps the ledger row for operator inspection.
	ledger.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "MarkConfirmed", mock.Anything, mock.Anything)
}

func TestRenderFailureContinuesWithoutPreview(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	renderer := new(mockRenderer)
	ledger.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil).Once()
	renderer.On("Render", mock.Anything, mock.Anything).Return([]byte(nil), errors.New("renderer down"))
	ledger.On("Delete", mock.Anything, int64(42)).Return(nil).Once()

	e := newTestEngine(ledger, renderer, nil, nil)
	driveToStake(t, e)

	res, err := e.Advance(ctx, owner, choose("2"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepDestination, res.Spec.Step)
	assert.Nil(t, res.PreviewData)

	require.NoError(t, e.Cancel(ctx, owner, "cleanup"))
}

func TestNoDestinationsStopsSession(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	ledger.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil).Once()
	ledger.On("Delete", mock.Anything, int64(42)).Return(nil).Once()

	cat := catalog.New(nil, catalog.Curation{
		Categories:  []string{"Soccer"},
		StakeLadder: []float64{2},
	}, testLogger())
	e := NewEngine(cat, ledger, nil, nil, Config{BuildTTL: time.Minute}, testLogger())
	driveToStake(t, e)

	res, err := e.Advance(ctx, owner, choose("2"))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Contains(t, res.Notice, "destinations")
	assert.False(t, e.Active(owner))
	ledger.AssertExpectations(t)
}

func TestParlayPersistsOnFirstLeg(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	ledger.On("Create", mock.Anything, mock.MatchedBy(func(rec *domain.BetRecord) bool {
		return rec.Kind == domain.KindParlay && len(rec.Legs) == 1
	})).Return(int64(7), nil).Once()
	ledger.On("Delete", mock.Anything, int64(7)).Return(nil).Once()

	e := newTestEngine(ledger, nil, nil, nil)

	_, err := e.Start(ctx, owner, -42, catalog.ModeParlay)
	require.NoError(t, err)
	_, err = e.Advance(ctx, owner, choose("Soccer"))
	require.NoError(t, err)
	_, err = e.Advance(ctx, owner, choose("event"))
	require.NoError(t, err)

	res, err := e.Advance(ctx, owner, typed("United\nCity\nspread -1.5\n-110"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepLegDecision, res.Spec.Step)

	require.NoError(t, e.Cancel(ctx, owner, "cleanup"))
	ledger.AssertExpectations(t)
}

func TestBrowseFlowTouchesNoLedger(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	dir := &stubDirectory{items: []domain.Item{
		{ID: "m1", Label: "United vs City", Counterpart: "City", Category: "Soccer"},
	}}

	e := newTestEngine(ledger, nil, nil, dir)

	res, err := e.Start(ctx, owner, -42, catalog.ModeBrowse)
	require.NoError(t, err)
	require.NotNil(t, res.Spec)

	res, err = e.Advance(ctx, owner, choose("Soccer"))
	require.NoError(t, err)
	require.NotNil(t, res.Spec)
	assert.Equal(t, catalog.StepSelection, res.Spec.Step)

	res, err = e.Advance(ctx, owner, choose("m1"))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Contains(t, res.Notice, "City")

	assert.False(t, e.Active(owner))
	ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestInactivityExpiry(t *testing.T) {
	ctx := context.Background()

	e := NewEngine(testCatalog(nil), new(mockLedger), nil, nil, Config{
		BuildTTL:  30 * time.Millisecond,
		BrowseTTL: 30 * time.Millisecond,
	}, testLogger())

	expired := make(chan *Session, 1)
	e.SetExpiryNotifier(func(s *Session) { expired <- s })

	_, err := e.Start(ctx, owner, -42, catalog.ModeSingle)
	require.NoError(t, err)

	select {
	case s := <-expired:
		assert.Equal(t, owner, s.OwnerID)
	case <-time.After(2 * time.Second):
		t.Fatal("session never expired")
	}

	assert.False(t, e.Active(owner))
	_, err = e.Advance(ctx, owner, choose("Soccer"))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDiscardOnConfirmStep(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	renderer := new(mockRenderer)
	ledger.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil).Once()
	renderer.On("Render", mock.Anything, mock.Anything).Return([]byte("png"), nil)
	ledger.On("Delete", mock.Anything, int64(42)).Return(nil).Once()

	e := newTestEngine(ledger, renderer, nil, nil)
	driveToStake(t, e)

	_, err := e.Advance(ctx, owner, choose("2"))
	require.NoError(t, err)
	_, err = e.Advance(ctx, owner, choose("-100123"))
	require.NoError(t, err)

	res, err := e.Advance(ctx, owner, choose("cancel"))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Contains(t, res.Notice, "discarded")

	assert.False(t, e.Active(owner))
	ledger.AssertExpectations(t)
}

// Cancellation never waits on the in-flight guard, so it can land at any
// point of an advancing transition — including while the first ledger Create
// is still in flight. Whatever the interleaving, a cancelled session must
// leave no ledger row behind.
func TestCancelDuringAdvanceLeavesNoRecord(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		ledger := new(mockLedger)
		renderer := new(mockRenderer)

		var created, deleted atomic.Int32
		ledger.On("Create", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { created.Add(1) }).
			Return(int64(42), nil)
		ledger.On("Update", mock.Anything, int64(42), mock.Anything).Return(nil)
		ledger.On("Delete", mock.Anything, int64(42)).
			Run(func(mock.Arguments) { deleted.Add(1) }).
			Return(nil)
		renderer.On("Render", mock.Anything, mock.Anything).Return([]byte("png"), nil)

		e := newTestEngine(ledger, renderer, nil, nil)
		driveToStake(t, e)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			// The stake transition persists the draft for the first time.
			_, _ = e.Advance(ctx, owner, choose("2"))
		}()
		go func() {
			defer wg.Done()
			_ = e.Cancel(ctx, owner, "concurrent cancel")
		}()
		wg.Wait()

		assert.False(t, e.Active(owner))
		if created.Load() > 0 {
			assert.Positive(t, deleted.Load(), "iteration %d: created record survived the cancel", i)
		}
	}
}

// An advance that loses the race outright is swallowed: the teardown already
// told the user, so the late transition reports only that the session stopped.
func TestAdvanceAfterCancelReportsStopped(t *testing.T) {
	ctx := context.Background()

	ledger := new(mockLedger)
	e := newTestEngine(ledger, new(mockRenderer), nil, nil)
	driveToStake(t, e)

	require.NoError(t, e.Cancel(ctx, owner, "user"))

	_, err := e.Advance(ctx, owner, choose("2"))
	assert.ErrorIs(t, err, ErrNoSession)
	ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
