package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/host"
)

// ChatEntry is a stored chat message.
type ChatEntry struct {
	ID        int64
	Message   host.ChatMessage
	CreatedAt time.Time
}

// ChatRepository appends chat messages to the shared session log. It
// implements host.ChatLog.
type ChatRepository struct {
	db *pgxpool.Pool
}

// NewChatRepository creates a ChatRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// PostMessage implements host.ChatLog.
//
// Precondition: msg.Content must be non-empty.
func (r *ChatRepository) PostMessage(ctx context.Context, msg host.ChatMessage) error {
	if msg.Content == "" {
		return fmt.Errorf("posting chat message: content must not be empty")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_messages (speaker, speaker_id, content, img)
		VALUES ($1, $2, $3, $4)`,
		msg.Speaker, msg.SpeakerID, msg.Content, msg.Img,
	)
	if err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}
	return nil
}

// Recent returns up to limit messages, newest first.
//
// Precondition: limit must be > 0.
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *ChatRepository) Recent(ctx context.Context, limit int) ([]ChatEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, speaker, speaker_id, content, img, created_at
		FROM chat_messages ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chat messages: %w", err)
	}
	defer rows.Close()

	out := make([]ChatEntry, 0, limit)
	for rows.Next() {
		var e ChatEntry
		if err := rows.Scan(
			&e.ID, &e.Message.Speaker, &e.Message.SpeakerID,
			&e.Message.Content, &e.Message.Img, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning chat row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
