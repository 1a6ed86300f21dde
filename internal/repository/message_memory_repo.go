package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"messenger/internal/domain"
)

// MemoryMessageRepository es un store en proceso con la misma semántica que PgMessageRepository.
// Se usa cuando no hay DATABASE_URL configurado y en tests.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextID   int64
	messages []domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return NewMemoryMessageRepositoryWithClock(nil)
}

// NewMemoryMessageRepositoryWithClock permite fijar el reloj que asigna sent_datetime.
func NewMemoryMessageRepositoryWithClock(now func() time.Time) *MemoryMessageRepository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryMessageRepository{now: now}
}

func (r *MemoryMessageRepository) Create(_ context.Context, message domain.Message) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	stored := domain.Message{
		ID:             r.nextID,
		Sender:         message.Sender,
		Recipient:      message.Recipient,
		MessageContent: message.MessageContent,
		SentDatetime:   r.now(),
		IsRead:         false,
	}
	r.messages = append(r.messages, stored)
	return stored, nil
}

func (r *MemoryMessageRepository) List(_ context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	r.mu.RLock()
	out := make([]domain.Message, 0)
	for _, msg := range r.messages {
		if filter.Matches(msg) {
			out = append(out, msg)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return domain.Less(out[i], out[j]) })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryMessageRepository) MarkRead(_ context.Context, id int64) (domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.messages {
		if r.messages[i].ID == id {
			r.messages[i].IsRead = true
			r.messages[i].SentDatetime = r.now()
			return r.messages[i], nil
		}
	}
	return domain.Message{}, domain.ErrMessageNotFound
}

func (r *MemoryMessageRepository) Ping(context.Context) error {
	return nil
}
