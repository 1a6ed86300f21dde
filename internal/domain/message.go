package domain

import (
	"errors"
	"fmt"
	"time"
)

// Límites de longitud (en caracteres) de los campos de un mensaje.
const (
	MaxSenderLength    = 50
	MaxRecipientLength = 50
	MaxContentLength   = 160
)

var (
	ErrInvalidMessage  = errors.New("invalid message")
	ErrMessageNotFound = errors.New("message not found")
)

// Message es un mensaje corto entre dos partes. ID, SentDatetime e IsRead los asigna el store.
type Message struct {
	ID             int64     `json:"id"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	MessageContent string    `json:"message_content"`
	SentDatetime   time.Time `json:"sent_datetime"`
	IsRead         bool      `json:"is_read"`
}

// MessageFilter describe una consulta de listado. Los punteros nil no restringen el campo.
type MessageFilter struct {
	Sender    *string
	Recipient *string
	IsRead    *bool
	Since     time.Time
	Limit     int
}

// Matches aplica los predicados exactos y la cota temporal a un mensaje.
func (f MessageFilter) Matches(m Message) bool {
	if f.Sender != nil && m.Sender != *f.Sender {
		return false
	}
	if f.Recipient != nil && m.Recipient != *f.Recipient {
		return false
	}
	if f.IsRead != nil && m.IsRead != *f.IsRead {
		return false
	}
	return !m.SentDatetime.Before(f.Since)
}

// Less define el orden del listado: más reciente primero, empate por sender ascendente
// y, dentro del mismo sender, por id descendente.
func Less(a, b Message) bool {
	if !a.SentDatetime.Equal(b.SentDatetime) {
		return a.SentDatetime.After(b.SentDatetime)
	}
	if a.Sender != b.Sender {
		return a.Sender < b.Sender
	}
	return a.ID > b.ID
}

// ValidationError indica un campo de entrada inválido.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMessage
}
