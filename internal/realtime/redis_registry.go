package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultPresenceKey is the Redis hash holding userId -> Presence JSON.
const DefaultPresenceKey = "helpdesk:presence"

// DefaultPresenceTTL bounds how long a crashed node's sockets stay visible.
const DefaultPresenceTTL = 30 * time.Second

// hashGetter is satisfied by both *redis.Client and *redis.Tx.
type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// dropIfUnchanged deletes a hash field only while it still holds ARGV[2].
var dropIfUnchanged = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call('HDEL', KEYS[1], ARGV[1])
end
return 0
`)

// RedisRegistry shares presence between every API node through a Redis hash.
//
// Each node keeps a heartbeat key alive with a TTL. Entries owned by a node
// whose heartbeat expired are hidden from reads and removed lazily.
type RedisRegistry struct {
	client *redis.Client
	key    string
	node   string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisRegistry builds a registry on key (DefaultPresenceKey when empty).
func NewRedisRegistry(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *RedisRegistry {
	if key == "" {
		key = DefaultPresenceKey
	}
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRegistry{client: client, key: key, node: uuid.NewString(), ttl: ttl, logger: logger}
}

// NodeID identifies this process in stored presences.
func (r *RedisRegistry) NodeID() string {
	return r.node
}

func (r *RedisRegistry) nodeKey(node string) string {
	return r.key + ":node:" + node
}

// Heartbeat refreshes this node's liveness key.
func (r *RedisRegistry) Heartbeat(ctx context.Context) error {
	return r.client.Set(ctx, r.nodeKey(r.node), time.Now().UTC().Unix(), r.ttl).Err()
}

// Run heartbeats every third of the TTL until ctx is cancelled, then
// withdraws the node so its sockets disappear immediately.
func (r *RedisRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()
	for {
		if err := r.Heartbeat(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("presence heartbeat failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.Close(closeCtx); err != nil {
				r.logger.Warn("presence withdraw failed", zap.Error(err))
			}
			return
		case <-ticker.C:
		}
	}
}

// Close removes this node's heartbeat key.
func (r *RedisRegistry) Close(ctx context.Context) error {
	return r.client.Del(ctx, r.nodeKey(r.node)).Err()
}

func (r *RedisRegistry) Register(ctx context.Context, presence Presence) error {
	presence.NodeID = r.node
	raw, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, presence.UserID, raw)
		pipe.Set(ctx, r.nodeKey(r.node), time.Now().UTC().Unix(), r.ttl)
		return nil
	})
	return err
}

func (r *RedisRegistry) Unregister(ctx context.Context, userID, connID string) (bool, error) {
	removed := false
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, ok, err := r.get(ctx, tx, userID)
		if err != nil || !ok || current.ConnID != connID {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, r.key, userID)
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, r.key)
	if errors.Is(err, redis.TxFailedErr) {
		// a concurrent Register replaced the entry; leave it in place
		return false, nil
	}
	return removed, err
}

func (r *RedisRegistry) Lookup(ctx context.Context, userID string) (Presence, bool, error) {
	raw, err := r.client.HGet(ctx, r.key, userID).Result()
	if errors.Is(err, redis.Nil) {
		return Presence{}, false, nil
	}
	if err != nil {
		return Presence{}, false, err
	}
	live, err := r.live(ctx, map[string]string{userID: raw})
	if err != nil {
		return Presence{}, false, err
	}
	if len(live) == 0 {
		return Presence{}, false, nil
	}
	return live[0], true, nil
}

func (r *RedisRegistry) BroadcastTo(ctx context.Context, predicate func(Presence) bool) ([]Presence, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Presence
	for _, presence := range all {
		if predicate == nil || predicate(presence) {
			matched = append(matched, presence)
		}
	}
	sortPresences(matched)
	return matched, nil
}

func (r *RedisRegistry) Online(ctx context.Context) ([]string, error) {
	all, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, presence := range all {
		ids = append(ids, presence.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisRegistry) all(ctx context.Context) ([]Presence, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	return r.live(ctx, raw)
}

// live decodes raw entries and drops those whose node stopped heartbeating.
// Entries without a node id predate heartbeats and are kept.
func (r *RedisRegistry) live(ctx context.Context, raw map[string]string) ([]Presence, error) {
	decoded := make([]Presence, 0, len(raw))
	nodes := make(map[string]*redis.IntCmd)
	pipe := r.client.Pipeline()
	for _, value := range raw {
		var presence Presence
		if err := json.Unmarshal([]byte(value), &presence); err != nil {
			continue
		}
		decoded = append(decoded, presence)
		if presence.NodeID == "" {
			continue
		}
		if _, seen := nodes[presence.NodeID]; !seen {
			nodes[presence.NodeID] = pipe.Exists(ctx, r.nodeKey(presence.NodeID))
		}
	}
	if len(nodes) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
	}

	live := decoded[:0]
	for _, presence := range decoded {
		if cmd, ok := nodes[presence.NodeID]; ok && cmd.Val() == 0 {
			r.drop(ctx, presence.UserID, raw[presence.UserID])
			continue
		}
		live = append(live, presence)
	}
	return live, nil
}

func (r *RedisRegistry) drop(ctx context.Context, userID, raw string) {
	if err := dropIfUnchanged.Run(ctx, r.client, []string{r.key}, userID, raw).Err(); err != nil {
		r.logger.Debug("stale presence not removed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (r *RedisRegistry) get(ctx context.Context, cmd hashGetter, userID string) (Presence, bool, error) {
	raw, err := cmd.HGet(ctx, r.key, userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Presence{}, false, nil
	}
	if err != nil {
		return Presence{}, false, err
	}
	var presence Presence
	if err := json.Unmarshal(raw, &presence); err != nil {
		return Presence{}, false, err
	}
	return presence, true, nil
}
