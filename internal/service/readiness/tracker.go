package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/watchroom/server/internal/repository/readiness"
)

type iReadinessRepo interface {
	SetRecord(context.Context, *readiness.SetRecordParams) error
	GetRecords(ctx context.Context, roomId string) ([]readiness.Record, error)
	RemoveRecord(ctx context.Context, roomId, userId string) error
	RemoveRoom(ctx context.Context, roomId string) error
}

type MemberReadiness struct {
	UserId        string  `json:"user_id"`
	IsReady       bool    `json:"is_ready"`
	BufferPercent float64 `json:"buffer_percent"`
	Stale         bool    `json:"stale"`
}

type Consensus struct {
	AllReady  bool              `json:"all_ready"`
	AvgBuffer float64           `json:"avg_buffer"`
	Members   []MemberReadiness `json:"members"`
}

type tracker struct {
	repo       iReadinessRepo
	staleAfter time.Duration
	nowFunc    func() time.Time
	logger     *slog.Logger
}

func NewTracker(repo iReadinessRepo, staleAfter time.Duration, logger *slog.Logger) *tracker {
	return &tracker{
		repo:       repo,
		staleAfter: staleAfter,
		nowFunc:    time.Now,
		logger:     logger,
	}
}

type ReportReadinessParams struct {
	RoomId        string
	UserId        string
	IsReady       bool
	BufferPercent float64
}

// ReportReadiness upserts the member's record. BufferPercent is clamped to
// [0,100] on every write; out-of-range values are never stored.
func (t *tracker) ReportReadiness(ctx context.Context, params *ReportReadinessParams) error {
	if err := t.repo.SetRecord(ctx, &readiness.SetRecordParams{
		RoomId:        params.RoomId,
		UserId:        params.UserId,
		IsReady:       params.IsReady,
		BufferPercent: clampBuffer(params.BufferPercent),
		UpdatedAt:     t.nowFunc().UnixMilli(),
	}); err != nil {
		t.logger.InfoContext(ctx, "failed to set readiness record", "error", err)
		return fmt.Errorf("failed to set readiness record: %w", err)
	}

	return nil
}

// GetConsensus aggregates the room's readiness records. Records older than
// the staleness threshold are flagged stale and excluded from both the
// all-ready reduction and the buffer average: a silent member must neither
// block the room forever nor count as ready. With zero fresh records the
// answer is never "ready".
func (t *tracker) GetConsensus(ctx context.Context, roomId string) (Consensus, error) {
	records, err := t.repo.GetRecords(ctx, roomId)
	if err != nil {
		t.logger.InfoContext(ctx, "failed to get readiness records", "error", err)
		return Consensus{}, fmt.Errorf("failed to get readiness records: %w", err)
	}

	cutoff := t.nowFunc().Add(-t.staleAfter).UnixMilli()

	members := make([]MemberReadiness, 0, len(records))
	fresh := 0
	allReady := true
	var bufferSum float64

	for _, record := range records {
		stale := record.UpdatedAt < cutoff
		members = append(members, MemberReadiness{
			UserId:        record.UserId,
			IsReady:       record.IsReady,
			BufferPercent: record.BufferPercent,
			Stale:         stale,
		})

		if stale {
			continue
		}

		fresh++
		bufferSum += record.BufferPercent
		if !record.IsReady {
			allReady = false
		}
	}

	if fresh == 0 {
		return Consensus{AllReady: false, AvgBuffer: 0, Members: members}, nil
	}

	return Consensus{
		AllReady:  allReady,
		AvgBuffer: bufferSum / float64(fresh),
		Members:   members,
	}, nil
}

// ClearMember removes the member's record so it cannot pollute future
// consensus once the membership ends.
func (t *tracker) ClearMember(ctx context.Context, roomId, userId string) error {
	if err := t.repo.RemoveRecord(ctx, roomId, userId); err != nil {
		t.logger.InfoContext(ctx, "failed to remove readiness record", "error", err)
		return fmt.Errorf("failed to remove readiness record: %w", err)
	}

	return nil
}

// ClearRoom drops every record for the room. Invoked on room close.
func (t *tracker) ClearRoom(ctx context.Context, roomId string) error {
	if err := t.repo.RemoveRoom(ctx, roomId); err != nil {
		t.logger.InfoContext(ctx, "failed to remove readiness records", "error", err)
		return fmt.Errorf("failed to remove readiness records: %w", err)
	}

	return nil
}

func clampBuffer(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}

	return v
}
