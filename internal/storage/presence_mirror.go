package storage

import (
	"context"
	"log"
	"sort"

	"supportdesk/backend/internal/config"

	"github.com/redis/go-redis/v9"
)

type presenceOp struct {
	userID string
	online bool
}

// PresenceMirror copies presence changes into a Redis set so tools outside the
// server process (the admin CLI) can read who is online. Writes are queued and
// applied in order by Run; the in-memory registry stays authoritative.
type PresenceMirror struct {
	Redis *redis.Client
	Key   string
	ops   chan presenceOp
}

func NewPresenceMirror(rdb *redis.Client) *PresenceMirror {
	return &PresenceMirror{
		Redis: rdb,
		Key:   config.PresenceKey,
		ops:   make(chan presenceOp, config.PresenceQueueSize),
	}
}

// SetOnline queues an online marker without blocking the caller.
func (p *PresenceMirror) SetOnline(userID string) { p.enqueue(presenceOp{userID: userID, online: true}) }

// SetOffline queues removal of the online marker without blocking the caller.
func (p *PresenceMirror) SetOffline(userID string) { p.enqueue(presenceOp{userID: userID}) }

func (p *PresenceMirror) enqueue(op presenceOp) {
	select {
	case p.ops <- op:
	default:
		log.Printf("WARNING: presence mirror queue full, dropping update for %s", op.userID)
	}
}

// Reset clears markers left behind by a previous process.
func (p *PresenceMirror) Reset(ctx context.Context) error {
	return p.Redis.Del(ctx, p.Key).Err()
}

// Run applies queued updates until ctx is cancelled.
func (p *PresenceMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-p.ops:
			p.apply(ctx, op)
		}
	}
}

func (p *PresenceMirror) apply(ctx context.Context, op presenceOp) {
	opCtx, cancel := context.WithTimeout(ctx, config.PresenceOpTimeout)
	defer cancel()

	var err error
	if op.online {
		err = p.Redis.SAdd(opCtx, p.Key, op.userID).Err()
	} else {
		err = p.Redis.SRem(opCtx, p.Key, op.userID).Err()
	}
	if err != nil {
		log.Printf("ERROR: Failed to mirror presence of %s: %v", op.userID, err)
	}
}

// OnlineUsers returns the mirrored set, sorted.
func (p *PresenceMirror) OnlineUsers(ctx context.Context) ([]string, error) {
	ids, err := p.Redis.SMembers(ctx, p.Key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
