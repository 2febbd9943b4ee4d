package service

import (
	"sync"

	"github.com/ferrand/invoiceflow-bff-go/internal/port"

	"go.uber.org/zap"
)

const themePrefKey = "theme"

// Theme holds the dark-mode flag, mirrors it to the preference store, and
// notifies the UI layer through the apply callback on every change.
type Theme struct {
	prefs  port.Prefs
	apply  func(dark bool)
	logger *zap.Logger

	mu   sync.Mutex
	dark bool
}

// NewTheme resolves the initial flag from the persisted preference, falling
// back to platformDark when nothing was persisted, then applies and
// persists it immediately so the stored value and the UI agree from the
// start. apply may be nil.
func NewTheme(prefs port.Prefs, platformDark func() bool, apply func(dark bool), logger *zap.Logger) *Theme {
	t := &Theme{prefs: prefs, apply: apply, logger: logger}

	if v, ok := prefs.Get(themePrefKey); ok {
		t.dark = v == "dark"
	} else if platformDark != nil {
		t.dark = platformDark()
	}
	t.applyAndPersist()
	return t
}

// Toggle flips the flag, then applies and persists the new value.
func (t *Theme) Toggle() {
	t.mu.Lock()
	t.dark = !t.dark
	t.mu.Unlock()
	t.applyAndPersist()
}

// SetDark forces the flag to an explicit value.
func (t *Theme) SetDark(dark bool) {
	t.mu.Lock()
	changed := t.dark != dark
	t.dark = dark
	t.mu.Unlock()
	if changed {
		t.applyAndPersist()
	}
}

// IsDark reports the current flag.
func (t *Theme) IsDark() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dark
}

func (t *Theme) applyAndPersist() {
	t.mu.Lock()
	dark := t.dark
	t.mu.Unlock()

	if t.apply != nil {
		t.apply(dark)
	}

	value := "light"
	if dark {
		value = "dark"
	}
	if err := t.prefs.Set(themePrefKey, value); err != nil {
		// Preference storage being unavailable must not break theme
		// switching; the in-memory flag stays authoritative.
		t.logger.Warn("theme: persisting preference failed", zap.Error(err))
	}
}
