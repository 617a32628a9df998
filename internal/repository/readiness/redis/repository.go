package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/watchroom/server/internal/repository/readiness"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{rc: rc, logger: logger}
}

func (r repo) getRecordKey(roomId, userId string) string {
	return "room:" + roomId + ":readiness:" + userId
}

func (r repo) getIndexKey(roomId string) string {
	return "room:" + roomId + ":readiness"
}

func (r repo) SetRecord(ctx context.Context, params *readiness.SetRecordParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, r.getRecordKey(params.RoomId, params.UserId),
		"user_id", params.UserId,
		"is_ready", params.IsReady,
		"buffer_percent", params.BufferPercent,
		"updated_at", params.UpdatedAt,
	)
	pipe.SAdd(ctx, r.getIndexKey(params.RoomId), params.UserId)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetRecords(ctx context.Context, roomId string) ([]readiness.Record, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)

	userIds, err := r.rc.SMembers(ctx, r.getIndexKey(roomId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return nil, err
	}

	records := make([]readiness.Record, 0, len(userIds))
	for _, userId := range userIds {
		var record readiness.Record
		if err := r.rc.HGetAll(ctx, r.getRecordKey(roomId, userId)).Scan(&record); err != nil {
			r.logger.DebugContext(ctx, "returned", "error", err)
			return nil, err
		}

		// record removed between SMembers and HGetAll
		if record.UserId == "" {
			continue
		}

		records = append(records, record)
	}

	return records, nil
}

func (r repo) RemoveRecord(ctx context.Context, roomId, userId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)

	pipe := r.rc.TxPipeline()
	pipe.SRem(ctx, r.getIndexKey(roomId), userId)
	pipe.Del(ctx, r.getRecordKey(roomId, userId))

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)

	userIds, err := r.rc.SMembers(ctx, r.getIndexKey(roomId)).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	pipe := r.rc.TxPipeline()
	for _, userId := range userIds {
		pipe.Del(ctx, r.getRecordKey(roomId, userId))
	}
	pipe.Del(ctx, r.getIndexKey(roomId))

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
