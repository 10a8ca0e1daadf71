package ui

import (
	"errors"
	"strconv"

	"fyne.io/fyne/v2/driver/mobile"
	"fyne.io/fyne/v2/widget"
	"github.com/tartampluch/life-progress/internal/config"
)

// PortEntry is an Entry that only accepts digits and validates a TCP port range.
type PortEntry struct {
	widget.Entry
}

// NewPortEntry creates a PortEntry whose validation messages come from msg.
func NewPortEntry(msg func(key string) string) *PortEntry {
	entry := &PortEntry{}
	entry.ExtendBaseWidget(entry)
	entry.Validator = func(s string) error {
		return validatePort(s, msg)
	}
	return entry
}

// TypedRune drops anything that is not a digit. Pasted text still goes
// through the Validator.
func (e *PortEntry) TypedRune(r rune) {
	if r >= '0' && r <= '9' {
		e.Entry.TypedRune(r)
	}
}

// Keyboard requests a numeric keypad on mobile devices.
func (e *PortEntry) Keyboard() mobile.KeyboardType {
	return mobile.NumberKeyboard
}

func validatePort(s string, msg func(key string) string) error {
	if s == "" {
		return errors.New(msg(config.TKeyErrPortReq))
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return errors.New(msg(config.TKeyErrPortNum))
	}
	if port < config.MinPort || port > config.MaxPort {
		return errors.New(msg(config.TKeyErrPortRange))
	}
	return nil
}
