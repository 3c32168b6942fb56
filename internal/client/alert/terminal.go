package alert

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Terminal implements every effect for an ANSI terminal. The window title is
// tracked locally since terminals cannot report it back.
type Terminal struct {
	out io.Writer

	mu    sync.Mutex
	title string

	banner lipgloss.Style
	footer lipgloss.Style
}

func NewTerminal(out io.Writer, initialTitle string) *Terminal {
	return &Terminal{
		out:   out,
		title: initialTitle,
		banner: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#C2185B")).
			Padding(0, 1),
		footer: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#C2185B")).
			Padding(0, 1),
	}
}

// Effects returns the terminal as a full effect set. Vibration is left
// unset since no terminal can pulse a device.
func (t *Terminal) Effects() Effects {
	return Effects{
		Tone:     terminalTone{t},
		Notifier: t,
		Title:    t,
	}
}

type terminalTone struct{ t *Terminal }

// Play rings the terminal bell.
func (b terminalTone) Play() error {
	b.t.mu.Lock()
	defer b.t.mu.Unlock()
	_, err := io.WriteString(b.t.out, "\a")
	return err
}

func (t *Terminal) PermissionGranted() bool { return true }

func (t *Terminal) Show(title, body string) (Notice, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	block := lipgloss.JoinVertical(lipgloss.Left,
		t.banner.Render(title),
		t.footer.Render(fmt.Sprintf("%s\n%s", body, time.Now().Format("15:04:05"))),
	)
	if _, err := fmt.Fprintln(t.out, block); err != nil {
		return nil, err
	}
	return terminalNotice{}, nil
}

// Printed banners stay in scrollback.
type terminalNotice struct{}

func (terminalNotice) Dismiss() {}

func (t *Terminal) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

// SetTitle writes an OSC 0 sequence.
func (t *Terminal) SetTitle(title string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.out, "\x1b]0;%s\x07", title); err != nil {
		return err
	}
	t.title = title
	return nil
}
