package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"messenger/internal/domain"
)

// MessageRepository es el store persistente de mensajes.
type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) (domain.Message, error)
	List(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error)
	MarkRead(ctx context.Context, id int64) (domain.Message, error)
	Ping(ctx context.Context) error
}

const messageColumns = "id, sender, recipient, message_content, sent_datetime, is_read"

// pgQuerier es el subconjunto de *pgxpool.Pool que usa el repositorio.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

type PgMessageRepository struct {
	pool pgQuerier
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

// Create inserta el mensaje; id, sent_datetime e is_read los asigna Postgres.
func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) (domain.Message, error) {
	const query = `
		INSERT INTO messages (sender, recipient, message_content)
		VALUES ($1, $2, $3)
		RETURNING ` + messageColumns

	row := r.pool.QueryRow(ctx, query,
		message.Sender,
		message.Recipient,
		message.MessageContent,
	)
	return scanMessage(row)
}

func (r *PgMessageRepository) List(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkRead marca el mensaje como leído; sent_datetime se actualiza con la hora de la modificación.
func (r *PgMessageRepository) MarkRead(ctx context.Context, id int64) (domain.Message, error) {
	const query = `
		UPDATE messages
		SET is_read = true, sent_datetime = now()
		WHERE id = $1
		RETURNING ` + messageColumns

	msg, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return msg, err
}

func (r *PgMessageRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID,
		&msg.Sender,
		&msg.Recipient,
		&msg.MessageContent,
		&msg.SentDatetime,
		&msg.IsRead,
	)
	if err != nil {
		return domain.Message{}, err
	}
	msg.SentDatetime = msg.SentDatetime.UTC()
	return msg, nil
}

// buildListQuery arma un único SELECT a partir de los filtros presentes.
// El orden por sender usa collation "C" para coincidir con la comparación byte a byte de Go.
func buildListQuery(filter domain.MessageFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Recipient != nil {
		add("recipient", *filter.Recipient)
	}
	if filter.Sender != nil {
		add("sender", *filter.Sender)
	}
	if filter.IsRead != nil {
		add("is_read", *filter.IsRead)
	}

	args = append(args, filter.Since)
	where = append(where, fmt.Sprintf("sent_datetime >= $%d", len(args)))

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(messageColumns)
	b.WriteString(" FROM messages WHERE ")
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(` ORDER BY sent_datetime DESC, sender COLLATE "C" ASC, id DESC`)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	return b.String(), args
}
