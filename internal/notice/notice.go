// Package notice formats the short user-visible messages (toasts) the
// combat client raises: cooldowns, daily limits and run outcomes.
package notice

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bowarena/client/internal/net/proto"
)

// Printer renders toasts for one locale.
type Printer struct {
	p *message.Printer
}

// New returns a Printer for tag. Numbers are grouped per locale.
func New(tag language.Tag) *Printer {
	return &Printer{p: message.NewPrinter(tag)}
}

// Default is an English printer.
func Default() *Printer {
	return New(language.English)
}

// Countdown renders d as mm:ss, or h:mm:ss when an hour or longer.
// Negative durations render as 00:00.
func Countdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second) // round up so 29:59.4 shows 30:00
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Cooldown is shown when the server refuses a start because of a defeat
// cooldown.
func (pr *Printer) Cooldown(until, now time.Time) string {
	return pr.p.Sprintf("Resting after defeat. Try again in %s", Countdown(until.Sub(now)))
}

// DailyLimit is shown when no battles are left today.
func (pr *Printer) DailyLimit(maxPerDay int) string {
	if maxPerDay <= 0 {
		return pr.p.Sprintf("Daily battle limit reached")
	}
	return pr.p.Sprintf("Daily battle limit reached (%d per day)", maxPerDay)
}

// Victory announces a won run.
func (pr *Printer) Victory(xp int) string {
	if xp <= 0 {
		return pr.p.Sprintf("Victory!")
	}
	return pr.p.Sprintf("Victory! +%d XP", xp)
}

// Defeat announces a lost run with the server-issued cooldown, if any.
func (pr *Printer) Defeat(cooldownUntil, now time.Time) string {
	if cooldownUntil.IsZero() {
		return pr.p.Sprintf("Defeated")
	}
	return pr.p.Sprintf("Defeated. Next battle in %s", Countdown(cooldownUntil.Sub(now)))
}

// WaveCleared is shown at the start of a between-wave pause.
func (pr *Printer) WaveCleared(wave0, total int) string {
	return pr.p.Sprintf("Wave %d of %d cleared", wave0+1, total)
}

// Rejection renders a server policy rejection. maxPerDay is the daily battle
// allowance quoted by a daily_limit message. ok is false for errors that are
// not policy rejections (transport failures stay silent).
func (pr *Printer) Rejection(err error, now time.Time, maxPerDay int) (text string, ok bool) {
	var apiErr *proto.APIError
	if !errors.As(err, &apiErr) {
		return "", false
	}
	switch apiErr.Code {
	case proto.CodeCooldown:
		return pr.Cooldown(apiErr.CooldownUntil.Time(), now), true
	case proto.CodeDailyLimit:
		return pr.DailyLimit(maxPerDay), true
	case proto.CodeTooFast:
		return "", false
	default:
		return pr.p.Sprintf("Request refused: %s", apiErr.Code), true
	}
}
