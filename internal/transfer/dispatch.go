package transfer

import (
	"fmt"

	"github.com/thanhleviet/ena-dl/internal/ena"
)

// Mode is the transfer-mode preference requested by the user.
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeHTTP        Mode = "http"
	ModeAccelerated Mode = "accelerated"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeHTTP, ModeAccelerated:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("transfer: unknown mode %q", s)
	}
}

// Protocol identifies the transfer mechanism chosen for a file.
type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolAspera Protocol = "aspera"
)

// ModeUnavailableError reports that the requested transfer mode cannot
// serve a particular file.
type ModeUnavailableError struct {
	Run  string
	Name string
	Mode Mode
}

func (e *ModeUnavailableError) Error() string {
	return fmt.Sprintf("transfer: mode %s unavailable for %s/%s", e.Mode, e.Run, e.Name)
}

// Choose selects the protocol for an entry given the mode preference and
// whether the accelerated client is usable. In auto mode a missing
// Aspera URL or an unusable client falls back to HTTP; only forcing
// accelerated mode on an entry without an Aspera URL is an error.
func Choose(entry ena.FileEntry, mode Mode, acceleratedAvailable bool) (Protocol, error) {
	switch mode {
	case ModeHTTP:
		return ProtocolHTTP, nil
	case ModeAccelerated:
		if entry.AsperaURL == "" {
			return "", &ModeUnavailableError{Run: entry.Run, Name: entry.Name, Mode: mode}
		}
		return ProtocolAspera, nil
	default:
		if entry.AsperaURL != "" && acceleratedAvailable {
			return ProtocolAspera, nil
		}
		return ProtocolHTTP, nil
	}
}
