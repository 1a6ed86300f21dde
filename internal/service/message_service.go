package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"messenger/internal/domain"
	"messenger/internal/repository"
)

const (
	// RecencyWindow es el intervalo hacia atrás dentro del cual un mensaje es listable.
	RecencyWindow = 30 * 24 * time.Hour
	// MaxListResults es el máximo de mensajes devueltos por un listado.
	MaxListResults = 100
)

var (
	ErrMessageServiceNotConfigured = errors.New("message service not configured")
	ErrSendRateLimited             = errors.New("send rate limited")
)

// SendInput son los campos que el cliente puede fijar al enviar un mensaje.
type SendInput struct {
	Sender         string
	Recipient      string
	MessageContent string
}

// ListInput son los filtros opcionales del listado; nil significa sin restricción.
type ListInput struct {
	Sender    *string
	Recipient *string
	IsRead    *bool
}

// MessageService encapsula el alta y el listado de mensajes.
type MessageService struct {
	logger  *zap.Logger
	repo    repository.MessageRepository
	limiter SendRateLimiter
	now     func() time.Time
}

func NewMessageService(logger *zap.Logger, repo repository.MessageRepository, limiter SendRateLimiter) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{
		logger:  logger,
		repo:    repo,
		limiter: limiter,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Send valida e inserta un mensaje nuevo.
func (s *MessageService) Send(ctx context.Context, in SendInput) (domain.Message, error) {
	if s == nil || s.repo == nil {
		return domain.Message{}, ErrMessageServiceNotConfigured
	}

	msg := domain.Message{
		Sender:         strings.TrimSpace(in.Sender),
		Recipient:      strings.TrimSpace(in.Recipient),
		MessageContent: strings.TrimSpace(in.MessageContent),
	}
	if err := validateMessage(msg); err != nil {
		return domain.Message{}, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, msg.Sender)
		switch {
		case err != nil:
			s.logger.Warn("send rate limiter unavailable, allowing send", zap.String("sender", msg.Sender), zap.Error(err))
		case !allowed:
			s.logger.Warn("send rate limited", zap.String("sender", msg.Sender))
			return domain.Message{}, ErrSendRateLimited
		}
	}

	created, err := s.repo.Create(ctx, msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	return created, nil
}

// List devuelve los mensajes de los últimos 30 días que cumplen los filtros,
// ordenados por sent_datetime descendente y sender ascendente, hasta 100.
func (s *MessageService) List(ctx context.Context, in ListInput) ([]domain.Message, error) {
	if s == nil || s.repo == nil {
		return nil, ErrMessageServiceNotConfigured
	}

	filter := domain.MessageFilter{
		Sender:    in.Sender,
		Recipient: in.Recipient,
		IsRead:    in.IsRead,
		Since:     s.now().Add(-RecencyWindow),
		Limit:     MaxListResults,
	}

	messages, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// MarkRead marca un mensaje como leído.
func (s *MessageService) MarkRead(ctx context.Context, id int64) (domain.Message, error) {
	if s == nil || s.repo == nil {
		return domain.Message{}, ErrMessageServiceNotConfigured
	}
	if id <= 0 {
		return domain.Message{}, domain.ErrMessageNotFound
	}

	msg, err := s.repo.MarkRead(ctx, id)
	if errors.Is(err, domain.ErrMessageNotFound) {
		return domain.Message{}, err
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("mark message read: %w", err)
	}
	return msg, nil
}

// Ping comprueba que el store responde.
func (s *MessageService) Ping(ctx context.Context) error {
	if s == nil || s.repo == nil {
		return ErrMessageServiceNotConfigured
	}
	return s.repo.Ping(ctx)
}

func validateMessage(msg domain.Message) error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"sender", msg.Sender, domain.MaxSenderLength},
		{"recipient", msg.Recipient, domain.MaxRecipientLength},
		{"message_content", msg.MessageContent, domain.MaxContentLength},
	}
	for _, f := range fields {
		if f.value == "" {
			return &domain.ValidationError{Field: f.name, Reason: "this field may not be blank"}
		}
		if strings.ContainsRune(f.value, 0) {
			return &domain.ValidationError{Field: f.name, Reason: "null characters are not allowed"}
		}
		if utf8.RuneCountInString(f.value) > f.max {
			return &domain.ValidationError{
				Field:  f.name,
				Reason: fmt.Sprintf("ensure this field has no more than %d characters", f.max),
			}
		}
	}
	return nil
}
