package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avele/studyroom/internal/domain"
)

//go:embed schema.sql
var schema string

// PgStore keeps room state in Postgres so rooms survive a server
// restart. Same contract as MemStore; selected by config DSN. The
// schema is applied on connect; every statement is IF NOT EXISTS so
// reconnects are harmless.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(ctx context.Context, dsn string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

func (s *PgStore) Close() { s.pool.Close() }

func (s *PgStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	roster, err := json.Marshal(room.Participants)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO rooms (id, name, topic, technique, max_users, creator, participants, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		room.ID, room.Name, room.Topic, room.Technique, room.MaxUsers, room.Creator, roster, room.CreatedAt)
	return err
}

func (s *PgStore) Room(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, topic, technique, max_users, creator, participants, created_at
		 FROM rooms WHERE id = $1`, id)
	return scanRoom(row)
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var room domain.Room
	var roster []byte
	err := row.Scan(&room.ID, &room.Name, &room.Topic, &room.Technique,
		&room.MaxUsers, &room.Creator, &roster, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(roster, &room.Participants); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *PgStore) SaveRoom(ctx context.Context, room *domain.Room) error {
	roster, err := json.Marshal(room.Participants)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms SET name = $2, topic = $3, technique = $4, max_users = $5, participants = $6
		 WHERE id = $1`,
		room.ID, room.Name, room.Topic, room.Technique, room.MaxUsers, roster)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *PgStore) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (s *PgStore) Rooms(ctx context.Context) ([]*domain.Room, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, topic, technique, max_users, creator, participants, created_at
		 FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (s *PgStore) AppendMessage(ctx context.Context, id domain.RoomID, msg domain.ChatMessage) (domain.ChatMessage, error) {
	parts, err := json.Marshal(msg.Parts)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	// Concurrent writers can race to the same MAX(seq)+1; the unique
	// (room_id, seq) constraint rejects the loser, which retries with
	// the next number.
	for attempt := 0; attempt < 5; attempt++ {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO messages (room_id, seq, role, author, parts, sent_at)
			 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5 FROM messages WHERE room_id = $1
			 RETURNING seq`,
			id, msg.Role, msg.Author, parts, msg.SentAt).Scan(&msg.Seq)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		if err != nil {
			return domain.ChatMessage{}, err
		}
		return msg, nil
	}
	return domain.ChatMessage{}, err
}

func (s *PgStore) Messages(ctx context.Context, id domain.RoomID) ([]domain.ChatMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, role, author, parts, sent_at FROM messages WHERE room_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var parts []byte
		if err := rows.Scan(&msg.Seq, &msg.Role, &msg.Author, &parts, &msg.SentAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(parts, &msg.Parts); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *PgStore) SaveNote(ctx context.Context, id domain.RoomID, text string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notes (room_id, text, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (room_id) DO UPDATE SET text = $2, updated_at = now()`, id, text)
	return err
}

func (s *PgStore) Note(ctx context.Context, id domain.RoomID) (domain.SharedNote, error) {
	var note domain.SharedNote
	err := s.pool.QueryRow(ctx,
		`SELECT text, updated_at FROM notes WHERE room_id = $1`, id).
		Scan(&note.Text, &note.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SharedNote{}, nil
	}
	return note, err
}

func (s *PgStore) PutResource(ctx context.Context, id domain.RoomID, res domain.Resource) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resources (room_id, file_name, location, uploader, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (room_id, file_name) DO UPDATE SET location = $3, uploader = $4, created_at = $5`,
		id, res.FileName, res.Location, res.Uploader, res.CreatedAt)
	return err
}

func (s *PgStore) DeleteResource(ctx context.Context, id domain.RoomID, fileName string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM resources WHERE room_id = $1 AND file_name = $2`, id, fileName)
	return err
}

func (s *PgStore) Resources(ctx context.Context, id domain.RoomID) ([]domain.Resource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT file_name, location, uploader, created_at FROM resources
		 WHERE room_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		var res domain.Resource
		if err := rows.Scan(&res.FileName, &res.Location, &res.Uploader, &res.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (s *PgStore) SaveQuiz(ctx context.Context, id domain.RoomID, quiz *domain.Quiz) error {
	options, err := json.Marshal(quiz.Options)
	if err != nil {
		return err
	}
	answers, err := json.Marshal(quiz.Answers)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (room_id, id, topic, question, options, correct_index, answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (room_id) DO UPDATE
		 SET id = $2, topic = $3, question = $4, options = $5, correct_index = $6, answers = $7`,
		id, quiz.ID, quiz.Topic, quiz.Question, options, quiz.CorrectIndex, answers)
	return err
}

func (s *PgStore) Quiz(ctx context.Context, id domain.RoomID) (*domain.Quiz, error) {
	var quiz domain.Quiz
	var options, answers []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, topic, question, options, correct_index, answers FROM quizzes WHERE room_id = $1`, id).
		Scan(&quiz.ID, &quiz.Topic, &quiz.Question, &options, &quiz.CorrectIndex, &answers)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoQuiz
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(options, &quiz.Options); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &quiz.Answers); err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (s *PgStore) ClearQuiz(ctx context.Context, id domain.RoomID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE room_id = $1`, id)
	return err
}
