package notice

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bowarena/client/internal/net/proto"
)

func TestCountdown(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "00:00"},
		{0, "00:00"},
		{59 * time.Second, "00:59"},
		{30 * time.Minute, "30:00"},
		{29*time.Minute + 59*time.Second + 400*time.Millisecond, "30:00"},
		{time.Hour + 5*time.Minute + 7*time.Second, "1:05:07"},
	}
	for _, tt := range tests {
		if got := Countdown(tt.d); got != tt.want {
			t.Errorf("Countdown(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDefeatShowsExactCooldown(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Default()
	got := p.Defeat(now.Add(30*time.Minute), now)
	if !strings.Contains(got, "30:00") {
		t.Fatalf("Defeat = %q, want countdown 30:00", got)
	}
	if got := p.Defeat(time.Time{}, now); got != "Defeated" {
		t.Fatalf("Defeat without cooldown = %q", got)
	}
}

func TestVictoryGroupsNumbers(t *testing.T) {
	p := Default()
	if got := p.Victory(1234); got != "Victory! +1,234 XP" {
		t.Fatalf("Victory = %q", got)
	}
	if got := p.Victory(0); got != "Victory!" {
		t.Fatalf("Victory(0) = %q", got)
	}
}

func TestRejection(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := Default()

	cool := &proto.APIError{Code: proto.CodeCooldown, CooldownUntil: proto.MillisOf(now.Add(90 * time.Second))}
	text, ok := p.Rejection(fmt.Errorf("start: %w", cool), now, 0)
	if !ok || !strings.Contains(text, "01:30") {
		t.Fatalf("cooldown rejection = %q, %v", text, ok)
	}

	text, ok = p.Rejection(&proto.APIError{Code: proto.CodeDailyLimit}, now, 5)
	if !ok || text != "Daily battle limit reached (5 per day)" {
		t.Fatalf("daily limit rejection = %q, %v", text, ok)
	}
	text, ok = p.Rejection(&proto.APIError{Code: proto.CodeDailyLimit}, now, 0)
	if !ok || text != "Daily battle limit reached" {
		t.Fatalf("daily limit rejection without allowance = %q, %v", text, ok)
	}

	if _, ok := p.Rejection(&proto.APIError{Code: proto.CodeTooFast}, now, 5); ok {
		t.Fatal("too_fast should stay silent")
	}
	if _, ok := p.Rejection(errors.New("connection reset"), now, 5); ok {
		t.Fatal("transport errors should stay silent")
	}
}
