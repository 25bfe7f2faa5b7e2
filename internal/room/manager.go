// Package room manages membership: creation, capacity, join/leave and
// roster subscriptions. Rooms persist until explicit deletion; an
// empty room is never reaped automatically.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/channel"
	"github.com/avele/studyroom/internal/domain"
	"github.com/avele/studyroom/internal/store"
)

type Manager struct {
	store  store.Store
	broker *channel.Broker

	// serializes roster read-modify-write across Join/Leave
	mu sync.Mutex
}

func NewManager(st store.Store, broker *channel.Broker) *Manager {
	return &Manager{store: st, broker: broker}
}

// Create makes a room with the creator as its sole participant.
func (m *Manager) Create(ctx context.Context, name domain.RoomName, topic, technique string, maxUsers int, creator domain.Participant) (*domain.Room, error) {
	room, err := domain.NewRoom(name, topic, technique, maxUsers, creator)
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("store.CreateRoom: %w", err)
	}
	log.Info().Str("module", "room").Str("room", string(room.ID)).Str("creator", string(creator.Identity)).Msg("room created")
	return room, nil
}

// Join is idempotent: joining twice with the same identity changes
// nothing. Unknown rooms and empty identities are silent no-ops; a
// full room is rejected so the capacity invariant holds at join time.
func (m *Manager) Join(ctx context.Context, roomID domain.RoomID, p domain.Participant) error {
	if p.Identity == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	room, err := m.store.Room(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			log.Warn().Str("module", "room").Str("room", string(roomID)).Msg("join on unknown room ignored")
			return nil
		}
		return err
	}
	if room.HasParticipant(p.Identity) {
		return nil
	}
	if room.IsFull() {
		return domain.ErrRoomFull
	}
	room.Participants = append(room.Participants, p)
	if err := m.store.SaveRoom(ctx, room); err != nil {
		return fmt.Errorf("store.SaveRoom: %w", err)
	}
	m.broker.Publish(roomID, channel.KindRoster)
	log.Info().Str("module", "room").Str("room", string(roomID)).Str("identity", string(p.Identity)).Msg("joined")
	return nil
}

// Leave removes the participant if present and posts a room-visible
// system notice naming them. Absent participants are a no-op with no
// notice.
func (m *Manager) Leave(ctx context.Context, roomID domain.RoomID, id domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, err := m.store.Room(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil
		}
		return err
	}
	left, ok := room.RemoveParticipant(id)
	if !ok {
		return nil
	}
	if err := m.store.SaveRoom(ctx, room); err != nil {
		return fmt.Errorf("store.SaveRoom: %w", err)
	}
	m.broker.Publish(roomID, channel.KindRoster)

	name := left.Name
	if name == "" {
		name = string(left.Identity)
	}
	notice := domain.NewSystemNotice(fmt.Sprintf("%s left the room", name))
	if _, err := m.broker.SendMessage(ctx, roomID, notice); err != nil {
		log.Warn().Err(err).Str("module", "room").Str("room", string(roomID)).Msg("leave notice not delivered")
	}
	log.Info().Str("module", "room").Str("room", string(roomID)).Str("identity", string(id)).Msg("left")
	return nil
}

func (m *Manager) Snapshot(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	return m.store.Room(ctx, roomID)
}

func (m *Manager) List(ctx context.Context) ([]*domain.Room, error) {
	return m.store.Rooms(ctx)
}

// Delete is the explicit administrative removal; the only way a room
// ever goes away.
func (m *Manager) Delete(ctx context.Context, roomID domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.DeleteRoom(ctx, roomID)
}

// Subscribe delivers the current room snapshot immediately and again
// whenever membership changes, until the returned cancel is called.
func (m *Manager) Subscribe(roomID domain.RoomID, fn func(*domain.Room)) func() {
	return m.broker.Subscribe(roomID, channel.KindRoster, func(s channel.Snapshot) {
		if s.Room != nil {
			fn(s.Room)
		}
	})
}
