package ui

import "time"

const (
	toastDuration = 4 * time.Second
	noticeBuffer  = 16
)

// Notifier delivers failure messages from background actions to the UI.
type Notifier struct {
	ch chan string
}

// NewNotifier returns a Notifier with a small buffer.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan string, noticeBuffer)}
}

// Notify queues msg for display. It never blocks; messages are dropped when
// the UI falls behind.
func (n *Notifier) Notify(msg string) {
	select {
	case n.ch <- msg:
	default:
	}
}

// C returns the channel the UI reads notices from.
func (n *Notifier) C() <-chan string {
	return n.ch
}

type toast struct {
	text  string
	until time.Time
	ok    bool
}

func newToast(text string, now time.Time) toast {
	return toast{text: text, until: now.Add(toastDuration)}
}

// newOKToast is a toast reporting success rather than a failure.
func newOKToast(text string, now time.Time) toast {
	t := newToast(text, now)
	t.ok = true
	return t
}

func (t toast) active(now time.Time) bool {
	return t.text != "" && now.Before(t.until)
}
