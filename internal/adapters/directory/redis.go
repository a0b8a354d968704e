// Package directory persists the long-lived device set per channel in
// a Redis set, one key per channel.
package directory

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/reberkhan12-ai/live-azan/internal/domain"
)

type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func key(ch domain.ChannelID) string {
	return fmt.Sprintf("channel:%s:devices", ch)
}

func (d *Redis) ListDevices(ctx context.Context, ch domain.ChannelID) ([]domain.DeviceID, error) {
	members, err := d.rdb.SMembers(ctx, key(ch)).Result()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	out := make([]domain.DeviceID, 0, len(members))
	for _, m := range members {
		out = append(out, domain.DeviceID(m))
	}
	return out, nil
}

func (d *Redis) AddDevice(ctx context.Context, ch domain.ChannelID, id domain.DeviceID) error {
	if err := d.rdb.SAdd(ctx, key(ch), string(id)).Err(); err != nil {
		return fmt.Errorf("add device: %w", err)
	}
	return nil
}
