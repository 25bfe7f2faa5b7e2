package store

import (
	"context"
	"sync"
	"time"

	"github.com/avele/studyroom/internal/domain"
)

// MemStore is a threadsafe in-memory Store. Every instance carries its
// own tables, so independent tests can run concurrently.
type MemStore struct {
	mu        sync.RWMutex
	rooms     map[domain.RoomID]*domain.Room
	messages  map[domain.RoomID][]domain.ChatMessage
	seq       map[domain.RoomID]int64
	notes     map[domain.RoomID]domain.SharedNote
	resources map[domain.RoomID][]domain.Resource
	quizzes   map[domain.RoomID]*domain.Quiz
}

func NewMemStore() *MemStore {
	return &MemStore{
		rooms:     make(map[domain.RoomID]*domain.Room),
		messages:  make(map[domain.RoomID][]domain.ChatMessage),
		seq:       make(map[domain.RoomID]int64),
		notes:     make(map[domain.RoomID]domain.SharedNote),
		resources: make(map[domain.RoomID][]domain.Resource),
		quizzes:   make(map[domain.RoomID]*domain.Quiz),
	}
}

func (s *MemStore) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room.Clone()
	return nil
}

func (s *MemStore) Room(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (s *MemStore) SaveRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return domain.ErrRoomNotFound
	}
	s.rooms[room.ID] = room.Clone()
	return nil
}

// DeleteRoom removes the room and all of its channel state. Rooms are
// only ever deleted through this explicit call, never because they
// became empty.
func (s *MemStore) DeleteRoom(_ context.Context, id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(s.rooms, id)
	delete(s.messages, id)
	delete(s.seq, id)
	delete(s.notes, id)
	delete(s.resources, id)
	delete(s.quizzes, id)
	return nil
}

func (s *MemStore) Rooms(_ context.Context) ([]*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room.Clone())
	}
	return out, nil
}

func (s *MemStore) AppendMessage(_ context.Context, id domain.RoomID, msg domain.ChatMessage) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ChatMessage{}, domain.ErrRoomNotFound
	}
	s.seq[id]++
	msg.Seq = s.seq[id]
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	msg.Parts = append([]string(nil), msg.Parts...)
	s.messages[id] = append(s.messages[id], msg)
	return msg, nil
}

func (s *MemStore) Messages(_ context.Context, id domain.RoomID) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[id]; !ok {
		return nil, domain.ErrRoomNotFound
	}
	return append([]domain.ChatMessage(nil), s.messages[id]...), nil
}

func (s *MemStore) SaveNote(_ context.Context, id domain.RoomID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	s.notes[id] = domain.SharedNote{Text: text, UpdatedAt: time.Now()}
	return nil
}

func (s *MemStore) Note(_ context.Context, id domain.RoomID) (domain.SharedNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.SharedNote{}, domain.ErrRoomNotFound
	}
	return s.notes[id], nil
}

func (s *MemStore) PutResource(_ context.Context, id domain.RoomID, res domain.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	shelf := s.resources[id]
	for i, existing := range shelf {
		if existing.FileName == res.FileName {
			shelf[i] = res
			return nil
		}
	}
	s.resources[id] = append(shelf, res)
	return nil
}

// DeleteResource removes at most one entry and is a no-op when the
// name is absent.
func (s *MemStore) DeleteResource(_ context.Context, id domain.RoomID, fileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	shelf := s.resources[id]
	for i, res := range shelf {
		if res.FileName == fileName {
			s.resources[id] = append(shelf[:i], shelf[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemStore) Resources(_ context.Context, id domain.RoomID) ([]domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[id]; !ok {
		return nil, domain.ErrRoomNotFound
	}
	return append([]domain.Resource(nil), s.resources[id]...), nil
}

func (s *MemStore) SaveQuiz(_ context.Context, id domain.RoomID, quiz *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	s.quizzes[id] = quiz.Clone()
	return nil
}

func (s *MemStore) Quiz(_ context.Context, id domain.RoomID) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.rooms[id]; !ok {
		return nil, domain.ErrRoomNotFound
	}
	quiz, ok := s.quizzes[id]
	if !ok {
		return nil, domain.ErrNoQuiz
	}
	return quiz.Clone(), nil
}

func (s *MemStore) ClearQuiz(_ context.Context, id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return domain.ErrRoomNotFound
	}
	delete(s.quizzes, id)
	return nil
}
