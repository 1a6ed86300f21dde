package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SendRateLimiter decide si un sender puede enviar otro mensaje.
// Un error indica que el backend no pudo decidir; el servicio lo registra y deja pasar el envío.
type SendRateLimiter interface {
	Allow(ctx context.Context, sender string) (bool, error)
}

// senderKey normaliza el sender para que "Alice" y " alice " compartan cuota.
func senderKey(sender string) string {
	return strings.ToLower(strings.TrimSpace(sender))
}

type memorySendRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	now       func() time.Time
	lastSweep time.Time
	sent      map[string][]time.Time
}

// NewSendRateLimiter crea un limitador en memoria de ventana deslizante.
// Devuelve nil (sin límite) cuando max <= 0.
func NewSendRateLimiter(window time.Duration, max int) SendRateLimiter {
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memorySendRateLimiter{
		window: window,
		max:    max,
		now:    func() time.Time { return time.Now().UTC() },
		sent:   make(map[string][]time.Time),
	}
}

func (l *memorySendRateLimiter) Allow(_ context.Context, sender string) (bool, error) {
	key := senderKey(sender)
	if key == "" {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	recent := pruneBefore(l.sent[key], cutoff)
	if len(recent) >= l.max {
		l.sent[key] = recent
		return false, nil
	}
	l.sent[key] = append(recent, now)
	return true, nil
}

// sweep descarta los senders sin envíos dentro de la ventana.
func (l *memorySendRateLimiter) sweep(cutoff time.Time) {
	for key, times := range l.sent {
		recent := pruneBefore(times, cutoff)
		if len(recent) == 0 {
			delete(l.sent, key)
			continue
		}
		l.sent[key] = recent
	}
}

// pruneBefore conserva los instantes posteriores a cutoff; times está ordenado.
func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
