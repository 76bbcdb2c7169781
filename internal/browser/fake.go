package browser

import (
	"context"
	"fmt"
)

// Fake is an in-memory Driver for tests. Page state is a flat map of
// selector -> visibility/text; tests mutate it from the OnCall hook to
// simulate screen transitions after an action.
type Fake struct {
	Calls    []string          // every call in order, e.g. "click #refund"
	Shown    map[string]bool   // selector visibility
	Texts    map[string]string // selector text
	PageName string            // returned by Title
	Alerts   []string          // pending dialogs, drained by AcceptAlert
	Errs     map[string]error  // call key -> injected error
	Health   bool

	// OnCall runs after each recorded call, letting tests script the page.
	OnCall func(call string)
}

// NewFake returns a healthy fake with empty page state.
func NewFake() *Fake {
	return &Fake{
		Shown:  map[string]bool{},
		Texts:  map[string]string{},
		Errs:   map[string]error{},
		Health: true,
	}
}

// Show marks selectors visible.
func (f *Fake) Show(sels ...string) {
	for _, s := range sels {
		f.Shown[s] = true
	}
}

// Hide marks selectors not visible.
func (f *Fake) Hide(sels ...string) {
	for _, s := range sels {
		f.Shown[s] = false
	}
}

func (f *Fake) record(call string) error {
	f.Calls = append(f.Calls, call)
	err := f.Errs[call]
	if f.OnCall != nil {
		f.OnCall(call)
	}
	return err
}

// CallCount returns how many recorded calls equal call.
func (f *Fake) CallCount(call string) int {
	n := 0
	for _, c := range f.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	return f.record("navigate " + url)
}

func (f *Fake) Click(ctx context.Context, sel string) error {
	return f.record("click " + sel)
}

func (f *Fake) Fill(ctx context.Context, sel, value string) error {
	return f.record(fmt.Sprintf("fill %s=%s", sel, value))
}

func (f *Fake) Press(ctx context.Context, sel, key string) error {
	name := "key"
	switch key {
	case KeyEnter:
		name = "enter"
	case KeyTab:
		name = "tab"
	}
	return f.record(fmt.Sprintf("press %s %s", name, sel))
}

func (f *Fake) Text(ctx context.Context, sel string) (string, error) {
	if err := f.record("text " + sel); err != nil {
		return "", err
	}
	return f.Texts[sel], nil
}

func (f *Fake) Visible(ctx context.Context, sel string) (bool, error) {
	if err := f.record("visible " + sel); err != nil {
		return false, err
	}
	return f.Shown[sel], nil
}

func (f *Fake) Title(ctx context.Context) (string, error) {
	if err := f.record("title"); err != nil {
		return "", err
	}
	return f.PageName, nil
}

func (f *Fake) AcceptAlert(ctx context.Context) (string, bool) {
	if len(f.Alerts) == 0 {
		return "", false
	}
	text := f.Alerts[0]
	f.Alerts = f.Alerts[1:]
	return text, true
}

func (f *Fake) Healthy() bool { return f.Health }
