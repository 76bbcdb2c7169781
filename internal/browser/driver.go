// Package browser owns the browser process lifecycle: driver allocation,
// login, and guaranteed teardown. The rest of the program talks to the page
// through the Driver capability interface so the navigation logic stays
// independent of the concrete automation backend.
package browser

import "context"

// Key constants for Press, matching chromedp/kb encodings.
const (
	KeyEnter = "\r"
	KeyTab   = "\t"
)

// Driver is the minimal capability set the navigation state machine needs.
// All waiting/polling lives above this interface; every method observes or
// acts exactly once.
type Driver interface {
	// Navigate loads url in the current tab.
	Navigate(ctx context.Context, url string) error

	// Click scrolls sel into view and clicks it.
	Click(ctx context.Context, sel string) error

	// Fill clears sel and types value into it.
	Fill(ctx context.Context, sel, value string) error

	// Press sends a single key (KeyEnter, KeyTab) to sel.
	Press(ctx context.Context, sel, key string) error

	// Text returns the visible text of sel. Missing elements return "".
	Text(ctx context.Context, sel string) (string, error)

	// Visible reports whether sel exists and is rendered.
	Visible(ctx context.Context, sel string) (bool, error)

	// Title returns the current page title.
	Title(ctx context.Context) (string, error)

	// AcceptAlert drains one pending JavaScript dialog, returning its text.
	// ok is false when no dialog was pending.
	AcceptAlert(ctx context.Context) (text string, ok bool)

	// Healthy reports whether the underlying browser is still reachable.
	Healthy() bool
}
