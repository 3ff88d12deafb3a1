package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/mavprep/voice/internal/domain"
)

// SQL stores channels and messages in SQLite or PostgreSQL. Queries use
// $N placeholders, which both drivers accept.
type SQL struct {
	db     *sql.DB
	driver string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS channels (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		type          TEXT NOT NULL,
		privacy       TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		created_by    TEXT NOT NULL DEFAULT '',
		created_at    BIGINT NOT NULL,
		max_members   INTEGER NOT NULL DEFAULT 0,
		course        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		user_name  TEXT NOT NULL,
		content    TEXT NOT NULL,
		ts         BIGINT NOT NULL,
		updated_at BIGINT,
		reply_to   TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS messages_channel_ts ON messages (channel_id, ts, id)`,
}

// OpenSQL opens driver ("sqlite" or "postgres") at dsn and applies the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// One writer; also keeps ":memory:" a single database.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{`PRAGMA busy_timeout = 5000`, `PRAGMA journal_mode = WAL`} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("configure sqlite: %w", err)
			}
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info().Str("module", "store.sql").Str("driver", driver).Msg("database ready")
	return &SQL{db: db, driver: driver}, nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) CreateChannel(ctx context.Context, ch domain.Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, name, type, privacy, password_hash, created_by, created_at, max_members, course)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, type = excluded.type, privacy = excluded.privacy,
			password_hash = excluded.password_hash, max_members = excluded.max_members, course = excluded.course`,
		ch.ID, ch.Name, ch.Type, ch.Privacy, ch.PasswordHash, ch.CreatedBy,
		ch.CreatedAt.UnixNano(), ch.MaxMembers, ch.Course)
	if err != nil {
		return fmt.Errorf("create channel %s: %w", ch.ID, err)
	}
	return nil
}

const channelColumns = `id, name, type, privacy, password_hash, created_by, created_at, max_members, course`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (domain.Channel, error) {
	var (
		ch        domain.Channel
		createdAt int64
	)
	err := row.Scan(&ch.ID, &ch.Name, &ch.Type, &ch.Privacy, &ch.PasswordHash,
		&ch.CreatedBy, &createdAt, &ch.MaxMembers, &ch.Course)
	if err != nil {
		return domain.Channel{}, err
	}
	ch.CreatedAt = time.Unix(0, createdAt).UTC()
	return ch, nil
}

func (s *SQL) GetChannel(ctx context.Context, id domain.ChannelID) (domain.Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Channel{}, fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Channel{}, fmt.Errorf("get channel %s: %w", id, err)
	}
	return ch, nil
}

func (s *SQL) GetAllChannels(ctx context.Context) ([]domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()
	out := make([]domain.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *SQL) DeleteChannel(ctx context.Context, id domain.ChannelID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete channel %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = $1`, id); err != nil {
		return fmt.Errorf("delete messages of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete channel %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQL) CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := msg.Prepare(); err != nil {
		return domain.Message{}, err
	}
	if _, err := s.GetChannel(ctx, msg.ChannelID); err != nil {
		return domain.Message{}, err
	}
	var reply sql.NullString
	if msg.ReplyTo != nil {
		b, err := json.Marshal(msg.ReplyTo)
		if err != nil {
			return domain.Message{}, fmt.Errorf("encode reply: %w", err)
		}
		reply = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, channel_id, user_id, user_name, content, ts, reply_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ChannelID, msg.UserID, msg.UserName, msg.Content, msg.Timestamp.UnixNano(), reply)
	if err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

const messageColumns = `id, channel_id, user_id, user_name, content, ts, updated_at, reply_to`

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		m       domain.Message
		ts      int64
		updated sql.NullInt64
		reply   sql.NullString
	)
	if err := row.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.UserName, &m.Content, &ts, &updated, &reply); err != nil {
		return domain.Message{}, err
	}
	m.Timestamp = time.Unix(0, ts).UTC()
	if updated.Valid {
		t := time.Unix(0, updated.Int64).UTC()
		m.UpdatedAt = &t
	}
	if reply.Valid && reply.String != "" {
		m.ReplyTo = &domain.ReplyRef{}
		if err := json.Unmarshal([]byte(reply.String), m.ReplyTo); err != nil {
			return domain.Message{}, fmt.Errorf("decode reply: %w", err)
		}
	}
	return m, nil
}

func (s *SQL) GetChannelMessages(ctx context.Context, ch domain.ChannelID, limit int, cursor string) ([]domain.Message, string, error) {
	from, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	limit = domain.ClampLimit(limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE channel_id = $1 AND (ts > $2 OR (ts = $2 AND id > $3))
		ORDER BY ts, id
		LIMIT $4`, ch, from.ts, from.id, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("list messages of %s: %w", ch, err)
	}
	defer rows.Close()
	out := make([]domain.Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, "", fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = encodeCursor(positionOf(out[len(out)-1]))
	}
	return out, next, nil
}

func (s *SQL) getMessage(ctx context.Context, ch domain.ChannelID, id domain.MessageID) (domain.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE channel_id = $1 AND id = $2`, ch, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return m, err
}

func (s *SQL) UpdateMessage(ctx context.Context, ch domain.ChannelID, id domain.MessageID, content string) (domain.Message, error) {
	if content == "" || len(content) > domain.MaxMessageLen {
		return domain.Message{}, fmt.Errorf("%w: bad content", domain.ErrInvalidRequest)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = $1, updated_at = $2 WHERE channel_id = $3 AND id = $4`,
		content, time.Now().UTC().UnixNano(), ch, id)
	if err != nil {
		return domain.Message{}, fmt.Errorf("update message %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return s.getMessage(ctx, ch, id)
}

func (s *SQL) DeleteMessage(ctx context.Context, ch domain.ChannelID, id domain.MessageID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = $1 AND id = $2`, ch, id)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
