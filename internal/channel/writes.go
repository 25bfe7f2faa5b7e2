package channel

import (
	"context"
	"fmt"

	"github.com/avele/studyroom/internal/domain"
)

// Write helpers: accept the write at the source of truth, then nudge
// the feed. Failures surface to the caller only; already-synchronized
// state on other clients is never rolled back.

func (b *Broker) SendMessage(ctx context.Context, roomID domain.RoomID, msg domain.ChatMessage) (domain.ChatMessage, error) {
	stored, err := b.store.AppendMessage(ctx, roomID, msg)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("%w: append message: %w", domain.ErrSyncFailure, err)
	}
	b.Publish(roomID, KindChat)
	return stored, nil
}

// SaveNotes replaces the room's note blob. Concurrent writers race
// under last-write-wins; no merge, no conflict detection.
func (b *Broker) SaveNotes(ctx context.Context, roomID domain.RoomID, text string) error {
	if err := b.store.SaveNote(ctx, roomID, text); err != nil {
		return fmt.Errorf("%w: save notes: %w", domain.ErrSyncFailure, err)
	}
	b.Publish(roomID, KindNotes)
	return nil
}

func (b *Broker) UploadResource(ctx context.Context, roomID domain.RoomID, res domain.Resource) error {
	if err := b.store.PutResource(ctx, roomID, res); err != nil {
		return fmt.Errorf("%w: upload resource: %w", domain.ErrSyncFailure, err)
	}
	b.Publish(roomID, KindResources)
	return nil
}

func (b *Broker) DeleteResource(ctx context.Context, roomID domain.RoomID, fileName string) error {
	if err := b.store.DeleteResource(ctx, roomID, fileName); err != nil {
		return fmt.Errorf("%w: delete resource: %w", domain.ErrSyncFailure, err)
	}
	b.Publish(roomID, KindResources)
	return nil
}

// Typed subscription wrappers so callers never touch Snapshot fields
// that do not belong to their feed.

func (b *Broker) SubscribeMessages(roomID domain.RoomID, fn func([]domain.ChatMessage)) func() {
	return b.Subscribe(roomID, KindChat, func(s Snapshot) { fn(s.Messages) })
}

func (b *Broker) SubscribeNotes(roomID domain.RoomID, fn func(domain.SharedNote)) func() {
	return b.Subscribe(roomID, KindNotes, func(s Snapshot) { fn(s.Note) })
}

func (b *Broker) SubscribeResources(roomID domain.RoomID, fn func([]domain.Resource)) func() {
	return b.Subscribe(roomID, KindResources, func(s Snapshot) { fn(s.Resources) })
}
