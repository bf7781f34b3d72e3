package devserver

import (
	"time"

	"github.com/bowarena/client/internal/formula"
	"github.com/bowarena/client/internal/net/proto"
)

// player is everything the server remembers about one bearer token.
type player struct {
	name           string
	level          int
	xp             int
	bowLevel       int
	moveSpeedLevel int

	day           string // UTC date the counters belong to
	battlesToday  int
	winsToday     int
	cooldownUntil time.Time

	lastAttack time.Time
	run        *arenaRun
}

func newPlayer(name string, opts Options) *player {
	return &player{
		name:           name,
		level:          max(opts.StartLevel, formula.MinLevel),
		bowLevel:       opts.BowLevel,
		moveSpeedLevel: opts.MoveSpeedLevel,
	}
}

// rollDay resets the daily counters when the UTC date changes.
func (p *player) rollDay(now time.Time) {
	day := now.UTC().Format(time.DateOnly)
	if p.day != day {
		p.day = day
		p.battlesToday = 0
		p.winsToday = 0
	}
}

func (p *player) character(hp int) proto.Character {
	return proto.Character{
		Level:          p.level,
		MaxHP:          formula.PlayerMaxHP(p.level),
		CurrentHP:      hp,
		BowLevel:       p.bowLevel,
		MoveSpeedLevel: p.moveSpeedLevel,
		XP:             p.xp,
	}
}

// gainXP adds xp and levels up while the threshold (100 per level) is met.
func (p *player) gainXP(xp int) {
	p.xp += xp
	for p.level < formula.MaxLevel && p.xp >= xpToNext(p.level) {
		p.xp -= xpToNext(p.level)
		p.level++
	}
}

func xpToNext(level int) int { return 100 * level }

// victoryXP is the reward for clearing every wave at level.
func victoryXP(level, waves int) int { return 20 * level * waves }

// tooSoon reports whether an action at now comes less than gap after last,
// allowing slack for network jitter.
func tooSoon(last, now time.Time, gap time.Duration) bool {
	return !last.IsZero() && now.Sub(last) < gap-hitSlack
}
