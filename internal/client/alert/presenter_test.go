package alert

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

type fakeTone struct {
	mu    sync.Mutex
	plays int
	err   error

	// hold, when set, blocks every play after the first until closed.
	hold    chan struct{}
	started chan struct{}
}

func (f *fakeTone) Play() error {
	f.mu.Lock()
	f.plays++
	n, hold, err := f.plays, f.hold, f.err
	f.mu.Unlock()

	if hold != nil && n > 1 {
		select {
		case f.started <- struct{}{}:
		default:
		}
		<-hold
	}
	return err
}

func (f *fakeTone) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

type fakeNotice struct{ dismissed atomic.Bool }

func (n *fakeNotice) Dismiss() { n.dismissed.Store(true) }

type fakeNotifier struct {
	granted bool
	shown   []string
	notices []*fakeNotice
}

func (f *fakeNotifier) PermissionGranted() bool { return f.granted }

func (f *fakeNotifier) Show(title, _ string) (Notice, error) {
	n := &fakeNotice{}
	f.shown = append(f.shown, title)
	f.notices = append(f.notices, n)
	return n, nil
}

type fakeTitle struct {
	mu      sync.Mutex
	current string
	history []string
}

func (f *fakeTitle) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeTitle) SetTitle(t string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
	f.history = append(f.history, t)
	return nil
}

func (f *fakeTitle) changes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}

type fakeVibrator struct {
	patterns [][]time.Duration
	panicMsg string
}

func (f *fakeVibrator) Vibrate(p []time.Duration) error {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.patterns = append(f.patterns, p)
	return nil
}

type fixture struct {
	clk      *clockwork.FakeClock
	tone     *fakeTone
	notifier *fakeNotifier
	title    *fakeTitle
	vibrator *fakeVibrator
	p        *Presenter
}

func newFixture(t *testing.T, settings Settings) *fixture {
	f := &fixture{
		clk:      clockwork.NewFakeClock(),
		tone:     &fakeTone{},
		notifier: &fakeNotifier{granted: true},
		title:    &fakeTitle{current: "Deliveries"},
		vibrator: &fakeVibrator{},
	}
	f.p = NewPresenter(Effects{
		Tone:     f.tone,
		Notifier: f.notifier,
		Title:    f.title,
		Vibrator: f.vibrator,
	}, settings, f.clk, logger.NewTestLogger(t))
	return f
}

// waitTimers blocks until exactly n callbacks are scheduled on the clock.
func (f *fixture) waitTimers(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.clk.BlockUntilContext(ctx, n), "waiting for %d scheduled callbacks", n)
}

// neverAfter keeps advancing the clock and fails if cond ever holds.
func (f *fixture) neverAfter(t *testing.T, cond func() bool) {
	t.Helper()
	assert.Never(t, func() bool {
		f.clk.Advance(time.Second)
		return cond()
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func assigned() models.Notification {
	return models.Notification{
		Type:        models.TypeOrderAssigned,
		OrderID:     7,
		OrderNumber: "ORD-7",
		Message:     "New order assigned",
	}
}

func updated(orderNumber string) models.Notification {
	return models.Notification{Type: models.TypeOrderUpdated, OrderNumber: orderNumber}
}

// ==========================
// Present
// ==========================

func TestPresent_AssignmentFiresEveryEffect(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.Present(assigned())

	assert.Equal(t, 1, f.tone.count())
	require.Len(t, f.vibrator.patterns, 1)
	assert.Equal(t, DefaultSettings.VibrationPattern, f.vibrator.patterns[0])
	assert.Equal(t, []string{"New delivery: ORD-7"}, f.notifier.shown)
	assert.Equal(t, "New delivery: ORD-7", f.title.Title())
	assert.True(t, f.p.Flashing())
}

func TestPresent_ToneRepeatsOnInterval(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.Present(assigned())
	f.waitTimers(t, 3) // tone, dismiss, flash

	f.clk.Advance(699 * time.Millisecond)
	assert.Equal(t, 1, f.tone.count())

	f.clk.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return f.tone.count() == 2 }, time.Second, 5*time.Millisecond)
	f.waitTimers(t, 3)

	f.clk.Advance(700 * time.Millisecond)
	require.Eventually(t, func() bool { return f.tone.count() == 3 }, time.Second, 5*time.Millisecond)

	f.neverAfter(t, func() bool { return f.tone.count() > 3 })
}

func TestPresent_ToneFailureEndsSequenceOnly(t *testing.T) {
	f := newFixture(t, DefaultSettings)
	f.tone.err = errors.New("audio device busy")

	f.p.Present(assigned())

	assert.Equal(t, 1, f.tone.count())
	assert.Len(t, f.notifier.shown, 1)
	assert.Len(t, f.vibrator.patterns, 1)
	f.neverAfter(t, func() bool { return f.tone.count() > 1 })
}

func TestPresent_PanickingEffectDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, DefaultSettings)
	f.vibrator.panicMsg = "driver crashed"

	assert.NotPanics(t, func() { f.p.Present(assigned()) })
	assert.Len(t, f.notifier.shown, 1)
	assert.True(t, f.p.Flashing())
}

func TestPresent_UpdateSkipsToneAndVibration(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.Present(models.Notification{Type: models.TypeOrderCancelled, OrderNumber: "ORD-9"})

	assert.Zero(t, f.tone.count())
	assert.Empty(t, f.vibrator.patterns)
	assert.Equal(t, []string{"Order cancelled: ORD-9"}, f.notifier.shown)
}

func TestPresent_ConnectedIsIgnored(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.Present(models.NewConnectedNotification("hello"))

	assert.Zero(t, f.tone.count())
	assert.Empty(t, f.notifier.shown)
	assert.Empty(t, f.title.changes())
}

func TestPresent_NotificationRequiresPermission(t *testing.T) {
	f := newFixture(t, DefaultSettings)
	f.notifier.granted = false

	f.p.Present(assigned())

	assert.Empty(t, f.notifier.shown)
	assert.Equal(t, 1, f.tone.count())
}

func TestPresent_NotificationDismissedAfterTimeout(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.Present(updated("ORD-3"))
	require.Len(t, f.notifier.notices, 1)
	notice := f.notifier.notices[0]
	f.waitTimers(t, 2) // dismiss, flash

	f.clk.Advance(29 * time.Second)
	assert.Never(t, notice.dismissed.Load, 50*time.Millisecond, 5*time.Millisecond)

	f.clk.Advance(time.Second)
	assert.Eventually(t, notice.dismissed.Load, time.Second, 5*time.Millisecond)
}

func TestPresent_MissingEffectsAreTolerated(t *testing.T) {
	p := NewPresenter(Effects{}, DefaultSettings, clockwork.NewFakeClock(), logger.NewNoOpLogger())

	assert.NotPanics(t, func() { p.Present(assigned()) })
	assert.False(t, p.Flashing())
}

// ==========================
// Title flash
// ==========================

func TestFlash_AlternatesThenRestores(t *testing.T) {
	settings := DefaultSettings
	settings.FlashCycles = 2
	f := newFixture(t, settings)

	f.p.Present(updated("ORD-1"))
	for step := 1; step <= 4; step++ {
		f.waitTimers(t, 2) // dismiss, flash
		f.clk.Advance(time.Second)
	}
	require.Eventually(t, func() bool { return !f.p.Flashing() }, time.Second, 5*time.Millisecond)

	alert := "Order update: ORD-1"
	assert.Equal(t, []string{alert, "Deliveries", alert, "Deliveries", "Deliveries"}, f.title.changes())
	assert.Equal(t, "Deliveries", f.title.Title())
}

func TestFlash_FocusMidFlashRestoresAndStops(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.Present(updated("ORD-7"))
	for step := 1; step <= 2; step++ {
		f.waitTimers(t, 2)
		f.clk.Advance(time.Second)
	}
	f.waitTimers(t, 2)
	require.Equal(t, "Order update: ORD-7", f.title.Title())

	f.p.OnFocus()
	assert.Equal(t, "Deliveries", f.title.Title())
	assert.False(t, f.p.Flashing())

	changes := len(f.title.changes())
	f.neverAfter(t, func() bool { return len(f.title.changes()) != changes })
}

func TestFlash_SecondAlertKeepsOriginalTitle(t *testing.T) {
	settings := DefaultSettings
	settings.FlashCycles = 1
	settings.ToneRepeats = 1
	f := newFixture(t, settings)

	f.p.Present(assigned())
	f.p.Present(models.Notification{Type: models.TypeNewOrder, OrderNumber: "ORD-8"})
	assert.Equal(t, "New order: ORD-8", f.title.Title())

	for step := 1; step <= 2; step++ {
		f.waitTimers(t, 3) // two dismissals, flash
		f.clk.Advance(time.Second)
	}
	require.Eventually(t, func() bool { return !f.p.Flashing() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Deliveries", f.title.Title())
}

func TestFlash_FocusWithoutFlashIsNoop(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.OnFocus()

	assert.Empty(t, f.title.changes())
}

// ==========================
// Close
// ==========================

func TestClose_CancelsTonesAndRestoresTitle(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.Present(assigned())
	f.p.Close()

	assert.Equal(t, "Deliveries", f.title.Title())
	f.neverAfter(t, func() bool { return f.tone.count() > 1 })
}

func TestClose_DuringToneStopsTheSequence(t *testing.T) {
	f := newFixture(t, DefaultSettings)
	f.tone.hold = make(chan struct{})
	f.tone.started = make(chan struct{}, 1)

	f.p.Present(assigned())
	f.waitTimers(t, 3)
	f.clk.Advance(700 * time.Millisecond)

	select {
	case <-f.tone.started:
	case <-time.After(2 * time.Second):
		t.Fatal("second tone never started")
	}
	f.p.Close()
	close(f.tone.hold)

	f.neverAfter(t, func() bool { return f.tone.count() > 2 })
}

func TestClose_IgnoresLaterNotifications(t *testing.T) {
	f := newFixture(t, DefaultSettings)

	f.p.Close()
	f.p.Present(assigned())

	assert.Zero(t, f.tone.count())
	assert.Empty(t, f.notifier.shown)
	assert.Empty(t, f.title.changes())
}

// ==========================
// Terminal effects
// ==========================

func TestTerminal_Effects(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, "agent")
	effects := term.Effects()

	require.NoError(t, effects.Tone.Play())
	assert.Equal(t, "\a", buf.String())

	buf.Reset()
	require.NoError(t, effects.Title.SetTitle("ALERT"))
	assert.Equal(t, "\x1b]0;ALERT\x07", buf.String())
	assert.Equal(t, "ALERT", effects.Title.Title())

	buf.Reset()
	assert.True(t, effects.Notifier.PermissionGranted())
	notice, err := effects.Notifier.Show("New delivery: ORD-7", "Deliver to 5 Baker St")
	require.NoError(t, err)
	notice.Dismiss()
	assert.True(t, strings.Contains(buf.String(), "New delivery: ORD-7"))
	assert.True(t, strings.Contains(buf.String(), "Deliver to 5 Baker St"))

	assert.Nil(t, effects.Vibrator)
}
