// Package alert turns incoming notifications into tone, system
// notification, title flash and vibration effects.
package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"cakeshop-notifier/internal/common/logger"
	"cakeshop-notifier/internal/models"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc/panics"
)

// ErrUnsupported is returned by effects the platform cannot perform.
var ErrUnsupported = errors.New("effect not supported")

// Tone plays one short synthesized beep.
type Tone interface {
	Play() error
}

// Notice is a displayed system notification.
type Notice interface {
	Dismiss()
}

// Notifier shows system notifications.
type Notifier interface {
	PermissionGranted() bool
	// Show displays a notification that stays until dismissed.
	Show(title, body string) (Notice, error)
}

// TitleBar reads and writes the window title.
type TitleBar interface {
	Title() string
	SetTitle(title string) error
}

// Vibrator pulses the device; the pattern alternates on and off durations.
type Vibrator interface {
	Vibrate(pattern []time.Duration) error
}

// Settings are the effect counts and intervals.
type Settings struct {
	ToneRepeats         int
	ToneInterval        time.Duration
	NotificationTimeout time.Duration
	FlashCycles         int
	FlashInterval       time.Duration
	VibrationPattern    []time.Duration
}

var DefaultSettings = Settings{
	ToneRepeats:         3,
	ToneInterval:        700 * time.Millisecond,
	NotificationTimeout: 30 * time.Second,
	FlashCycles:         10,
	FlashInterval:       time.Second,
	VibrationPattern: []time.Duration{
		200 * time.Millisecond, 100 * time.Millisecond,
		200 * time.Millisecond, 100 * time.Millisecond,
		200 * time.Millisecond,
	},
}

// Effects are the platform outputs. Any of them may be nil.
type Effects struct {
	Tone     Tone
	Notifier Notifier
	Title    TitleBar
	Vibrator Vibrator
}

// Presenter is built once by the agent's composition root. It is safe for
// concurrent use.
type Presenter struct {
	effects  Effects
	settings Settings
	clock    clockwork.Clock
	logger   logger.Logger

	mu            sync.Mutex
	closed        bool
	flashing      bool
	flashGen      int
	originalTitle string
	flashTimer    clockwork.Timer
	toneTimer     clockwork.Timer
}

func NewPresenter(effects Effects, settings Settings, clk clockwork.Clock, log logger.Logger) *Presenter {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Presenter{
		effects:  effects,
		settings: settings,
		clock:    clk,
		logger:   logger.ForComponent(log, "alert"),
	}
}

// Present fires every effect appropriate for n. Each effect runs
// independently; a failing one never stops the rest.
func (p *Presenter) Present(n models.Notification) {
	if n.Type == models.TypeConnected || p.isClosed() {
		return
	}

	title, body := describe(n)
	urgent := n.Type == models.TypeOrderAssigned || n.Type == models.TypeNewOrder

	if urgent {
		p.run("tone", p.playTones)
		p.run("vibration", p.vibrate)
	}
	p.run("notification", func() error { return p.showNotification(title, body) })
	p.run("title", func() error { return p.flashTitle(title) })
}

func (p *Presenter) run(effect string, fn func() error) {
	var pc panics.Catcher
	var err error
	pc.Try(func() { err = fn() })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrUnsupported):
		p.logger.Debug("alert effect unsupported", map[string]interface{}{"effect": effect})
	default:
		p.logger.Warn("alert effect failed", map[string]interface{}{"effect": effect, "error": err.Error()})
	}
}

func describe(n models.Notification) (string, string) {
	switch n.Type {
	case models.TypeOrderAssigned:
		return fmt.Sprintf("New delivery: %s", n.OrderNumber), n.Message
	case models.TypeNewOrder:
		return fmt.Sprintf("New order: %s", n.OrderNumber), n.Message
	case models.TypeOrderCancelled:
		return fmt.Sprintf("Order cancelled: %s", n.OrderNumber), n.Message
	default:
		return fmt.Sprintf("Order update: %s", n.OrderNumber), n.Message
	}
}

// playTones plays the first tone now and the rest on the clock. A tone that
// fails ends the sequence.
func (p *Presenter) playTones() error {
	if p.effects.Tone == nil || p.settings.ToneRepeats <= 0 {
		return nil
	}
	p.mu.Lock()
	if p.toneTimer != nil {
		p.toneTimer.Stop()
		p.toneTimer = nil
	}
	p.mu.Unlock()

	if err := p.effects.Tone.Play(); err != nil {
		return err
	}
	p.scheduleTone(1)
	return nil
}

func (p *Presenter) scheduleTone(played int) {
	if played >= p.settings.ToneRepeats {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.toneTimer = p.clock.AfterFunc(p.settings.ToneInterval, func() {
		if p.isClosed() {
			return
		}
		p.run("tone", func() error {
			if err := p.effects.Tone.Play(); err != nil {
				return err
			}
			p.scheduleTone(played + 1)
			return nil
		})
	})
}

func (p *Presenter) vibrate() error {
	if p.effects.Vibrator == nil {
		return ErrUnsupported
	}
	return p.effects.Vibrator.Vibrate(p.settings.VibrationPattern)
}

func (p *Presenter) showNotification(title, body string) error {
	if p.effects.Notifier == nil || !p.effects.Notifier.PermissionGranted() {
		return nil
	}
	notice, err := p.effects.Notifier.Show(title, body)
	if err != nil {
		return err
	}
	if p.settings.NotificationTimeout > 0 {
		p.clock.AfterFunc(p.settings.NotificationTimeout, notice.Dismiss)
	}
	return nil
}

// flashTitle alternates alert and the original title for FlashCycles
// cycles, then restores the original. A flash already running is restarted
// with the new alert but keeps the original title it captured.
func (p *Presenter) flashTitle(alert string) error {
	if p.effects.Title == nil || p.settings.FlashCycles <= 0 {
		return nil
	}

	p.mu.Lock()
	if p.flashing {
		if p.flashTimer != nil {
			p.flashTimer.Stop()
		}
	} else {
		p.originalTitle = p.effects.Title.Title()
		p.flashing = true
	}
	p.flashGen++
	gen := p.flashGen
	p.mu.Unlock()

	return p.flashStep(gen, alert, 0)
}

func (p *Presenter) flashStep(gen int, alert string, step int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.flashing || gen != p.flashGen {
		return nil
	}

	if step >= 2*p.settings.FlashCycles {
		p.flashing = false
		p.flashTimer = nil
		return p.effects.Title.SetTitle(p.originalTitle)
	}

	title := alert
	if step%2 == 1 {
		title = p.originalTitle
	}
	err := p.effects.Title.SetTitle(title)
	p.flashTimer = p.clock.AfterFunc(p.settings.FlashInterval, func() {
		p.run("title", func() error { return p.flashStep(gen, alert, step+1) })
	})
	return err
}

// OnFocus restores the original title immediately and cancels the rest of
// the flash. Call it when the window regains focus.
func (p *Presenter) OnFocus() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.flashing {
		return
	}
	p.flashing = false
	if p.flashTimer != nil {
		p.flashTimer.Stop()
		p.flashTimer = nil
	}
	p.run("title", func() error { return p.effects.Title.SetTitle(p.originalTitle) })
}

// Flashing reports whether a title flash is in progress.
func (p *Presenter) Flashing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flashing
}

func (p *Presenter) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close cancels scheduled tones and restores the title. Later notifications
// are ignored.
func (p *Presenter) Close() {
	p.mu.Lock()
	p.closed = true
	if p.toneTimer != nil {
		p.toneTimer.Stop()
		p.toneTimer = nil
	}
	p.mu.Unlock()
	p.OnFocus()
}
