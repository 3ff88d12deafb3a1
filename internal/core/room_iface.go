package core

import (
	"context"

	"github.com/mavprep/voice/internal/domain"
)

// JoinResult is what a joiner observes: the count after its join and
// the members that were present before it, in join order.
type JoinResult struct {
	MemberCount int
	Existing    []domain.Member
}

// RoomService is one room's membership set.
// Every method is serialized on the room's own lock.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	Join(ctx context.Context, m domain.Member, limit int) (JoinResult, error)
	// Leave reports whether conn was removed and whether the room is now empty.
	Leave(ctx context.Context, conn domain.ConnectionID) (m domain.Member, removed, empty bool, err error)
	Members(ctx context.Context) ([]domain.Member, error)
	CloseIfEmpty(ctx context.Context) (bool, error)
}

// RoomTable maps room ids to their membership. Rooms are created on first
// join and evicted once empty.
type RoomTable interface {
	Join(ctx context.Context, room domain.RoomID, m domain.Member, limit int) (JoinResult, error)
	Leave(ctx context.Context, room domain.RoomID, conn domain.ConnectionID) (domain.Member, bool, error)
	Members(ctx context.Context, room domain.RoomID) ([]domain.Member, error)
	Size(room domain.RoomID) int
	List() []domain.RoomInfo
	// EvictEmpty drops rooms left empty by failed joins and returns how many.
	EvictEmpty(ctx context.Context) int
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ConnectionID
}

