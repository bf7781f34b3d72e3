package system

import (
	"context"
	"errors"

	"github.com/bowarena/client/internal/net/proto"
)

// ArenaAPI is the slice of the server contract the arena systems call.
// *net.Client satisfies it; tests supply fakes.
type ArenaAPI interface {
	Attack(ctx context.Context, runID string, monsterIndex int) (*proto.AttackResponse, error)
	MonsterHit(ctx context.Context, runID string, monsterIndex int) (*proto.MonsterHitResponse, error)
	NextWave(ctx context.Context, runID string) (*proto.NextWaveResponse, error)
	Ping(ctx context.Context) (*proto.PingResponse, error)
}

// DuelAPI is the slice of the server contract the duel synchronizer calls.
type DuelAPI interface {
	PvpAttack(ctx context.Context, runID string) (*proto.PvpAttackResponse, error)
	PollRun(ctx context.Context, runID string) (*proto.RunState, error)
	PushPosition(ctx context.Context, runID string, pos proto.PositionUpdate) (*proto.PingResponse, error)
}

// Local policy rejections. No state is mutated when one is returned.
var (
	ErrTargetDead         = errors.New("target is dead")
	ErrTargetInvulnerable = errors.New("target is invulnerable")
	ErrAttackCooldown     = errors.New("attack on cooldown")
	ErrNotFighting        = errors.New("not in a fight phase")
	ErrRunEnded           = errors.New("run has ended")
	ErrMoving             = errors.New("already moving")
	ErrBadStep            = errors.New("not a single cardinal step")
	ErrBlocked            = errors.New("destination not walkable")
)
