package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Hub is the single chat room: it owns the registry and the broadcaster and
// is handed to every session explicitly.
type Hub struct {
	registry    *Registry
	broadcaster *Broadcaster
	log         *zerolog.Logger
}

// NewHub creates an empty room.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	registry := NewRegistry()
	return &Hub{
		registry:    registry,
		broadcaster: NewBroadcaster(registry, logger),
		log:         logger,
	}
}

// Registry exposes the underlying registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcaster exposes the underlying broadcaster.
func (h *Hub) Broadcaster() *Broadcaster {
	return h.broadcaster
}

// Join validates nickname and registers s under it. On success the other
// sessions are told about the newcomer.
func (h *Hub) Join(nickname string, s *Session) error {
	if err := ValidateNickname(nickname); err != nil {
		return err
	}
	if !h.registry.Insert(nickname, s) {
		return HandshakeError(ErrCodeNicknameInUse, fmt.Errorf("%w: %s", ErrNicknameInUse, nickname))
	}
	s.SetState(StateActive)

	h.log.Info().
		Str("session_id", s.ID).
		Str("nickname", nickname).
		Int("online", h.registry.Len()).
		Msg("session joined")
	h.broadcaster.Send(JoinNotice(nickname), s)
	return nil
}

// Leave removes s and, if it was registered, announces the departure.
// It reports whether this call did the removal.
func (h *Hub) Leave(s *Session) bool {
	s.SetState(StateTerminating)
	nickname, removed := h.registry.Remove(s)
	if !removed {
		return false
	}

	h.log.Info().
		Str("session_id", s.ID).
		Str("nickname", nickname).
		Int("online", h.registry.Len()).
		Msg("session left")
	h.broadcaster.announceDeparture(nickname)
	return true
}

// Broadcast relays body from sender to everyone else.
func (h *Hub) Broadcast(sender *Session, body string) int {
	return h.broadcaster.Send(Broadcast(sender.Nickname(), body), sender)
}

// Whisper relays body from sender to the session registered as target.
// The target is evicted if the write fails; the sender is never affected
// by the target's failure. ErrTargetNotFound covers both a missing target
// and a failed delivery.
func (h *Hub) Whisper(sender *Session, target, body string) error {
	recipient, ok := h.registry.Lookup(target)
	if !ok {
		return ProtocolError(ErrCodeTargetNotFound, ErrTargetNotFound)
	}
	line := Whisper(sender.Nickname(), target, body).Format()
	if err := h.broadcaster.DeliverOrEvict(recipient, line); err != nil {
		return ProtocolError(ErrCodeTargetNotFound, fmt.Errorf("%w: %v", ErrTargetNotFound, err))
	}
	return nil
}

// Close announces shutdown to every session and closes their transports.
// The notice is written to all sessions at once; sessions still writing
// when ctx is done are closed, which interrupts their write. Departures that
// follow are not broadcast.
func (h *Hub) Close(ctx context.Context) {
	if h.broadcaster.Mute() {
		return
	}
	line := System(NoticeShuttingDown).Format()
	sessions := h.registry.Snapshot(nil)

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Send(line)
			_ = s.Close()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		h.log.Warn().Err(ctx.Err()).Int("sessions", len(sessions)).Msg("shutdown notice cut short")
		for _, s := range sessions {
			_ = s.Close()
		}
		<-done
	}
}

// Closing reports whether Close has been called.
func (h *Hub) Closing() bool {
	return h.broadcaster.muted.Load()
}
