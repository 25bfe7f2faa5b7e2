// Package channel synchronizes shared room state out to subscribers.
// Callers see publish/subscribe; underneath each live feed polls the
// store on a fixed interval, with a nudge on publish so writes land
// well inside the staleness window.
package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/domain"
	"github.com/avele/studyroom/internal/store"
)

// Kind names one independently synchronized piece of room state.
type Kind string

const (
	KindRoster    Kind = "roster"
	KindChat      Kind = "chat"
	KindNotes     Kind = "notes"
	KindResources Kind = "resources"
	KindQuiz      Kind = "quiz"
)

// Snapshot carries the current state of one feed. Only the field
// matching the feed's kind is set.
type Snapshot struct {
	Room      *domain.Room
	Messages  []domain.ChatMessage
	Note      domain.SharedNote
	Resources []domain.Resource
	Quiz      *domain.Quiz
}

const DefaultInterval = time.Second

type feedKey struct {
	room domain.RoomID
	kind Kind
}

type Broker struct {
	ctx      context.Context
	store    store.Store
	interval time.Duration

	mu    sync.Mutex
	feeds map[feedKey]*feed
}

// New builds a broker bound to ctx; canceling ctx stops every feed.
func New(ctx context.Context, st store.Store, interval time.Duration) *Broker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Broker{
		ctx:      ctx,
		store:    st,
		interval: interval,
		feeds:    make(map[feedKey]*feed),
	}
}

// Publish nudges the feed so subscribers see the write without waiting
// for the next tick. Safe to call for feeds nobody watches.
func (b *Broker) Publish(roomID domain.RoomID, kind Kind) {
	b.mu.Lock()
	f, ok := b.feeds[feedKey{roomID, kind}]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Subscribe registers fn on the (room, kind) feed and delivers the
// current snapshot immediately. The returned cancel is idempotent;
// when the last subscriber leaves, the feed's refresh loop stops.
func (b *Broker) Subscribe(roomID domain.RoomID, kind Kind, fn func(Snapshot)) func() {
	key := feedKey{roomID, kind}

	b.mu.Lock()
	f, ok := b.feeds[key]
	if !ok {
		ctx, cancel := context.WithCancel(b.ctx)
		f = &feed{
			key:    key,
			notify: make(chan struct{}, 1),
			subs:   make(map[int]func(Snapshot)),
			cancel: cancel,
		}
		b.feeds[key] = f
		go b.loop(ctx, f)
	}
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()
	b.mu.Unlock()

	if snap, err := b.fetch(roomID, kind); err == nil {
		fn(snap)
	}

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(key, id) })
	}
}

func (b *Broker) unsubscribe(key feedKey, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.feeds[key]
	if !ok {
		return
	}
	f.mu.Lock()
	delete(f.subs, id)
	empty := len(f.subs) == 0
	f.mu.Unlock()
	if empty {
		f.cancel()
		delete(b.feeds, key)
	}
}

type feed struct {
	key    feedKey
	notify chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)
}

func (f *feed) fanOut(snap Snapshot) {
	f.mu.Lock()
	targets := make([]func(Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		targets = append(targets, fn)
	}
	f.mu.Unlock()
	for _, fn := range targets {
		fn(snap)
	}
}

func (b *Broker) loop(ctx context.Context, f *feed) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-f.notify:
		}
		snap, err := b.fetch(f.key.room, f.key.kind)
		if err != nil {
			log.Warn().Err(err).
				Str("module", "channel").
				Str("room", string(f.key.room)).
				Str("kind", string(f.key.kind)).
				Msg("refresh failed")
			continue
		}
		f.fanOut(snap)
	}
}

func (b *Broker) fetch(roomID domain.RoomID, kind Kind) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.interval)
	defer cancel()

	var snap Snapshot
	var err error
	switch kind {
	case KindRoster:
		snap.Room, err = b.store.Room(ctx, roomID)
	case KindChat:
		snap.Messages, err = b.store.Messages(ctx, roomID)
	case KindNotes:
		snap.Note, err = b.store.Note(ctx, roomID)
	case KindResources:
		snap.Resources, err = b.store.Resources(ctx, roomID)
	case KindQuiz:
		snap.Quiz, err = b.store.Quiz(ctx, roomID)
		if errors.Is(err, domain.ErrNoQuiz) {
			// A cleared quiz is still a deliverable state.
			snap.Quiz, err = nil, nil
		}
	}
	return snap, err
}
