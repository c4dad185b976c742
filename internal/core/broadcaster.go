package core

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Broadcaster fans messages out to registered sessions and evicts those
// that cannot be written to.
type Broadcaster struct {
	registry *Registry
	log      *zerolog.Logger
	muted    atomic.Bool
}

// NewBroadcaster builds a broadcaster over registry.
func NewBroadcaster(registry *Registry, logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{registry: registry, log: logger}
}

// Send delivers msg to every registered session except exclude and returns
// the number of successful deliveries. The registry lock is not held while
// writing.
func (b *Broadcaster) Send(msg Message, exclude *Session) int {
	line := msg.Format()
	delivered := 0
	for _, s := range b.registry.Snapshot(exclude) {
		if err := b.DeliverOrEvict(s, line); err == nil {
			delivered++
		}
	}
	return delivered
}

// DeliverOrEvict writes line to s. On failure s is evicted and the error is
// returned.
func (b *Broadcaster) DeliverOrEvict(s *Session, line string) error {
	err := s.Send(line)
	if err != nil {
		b.Evict(s, err)
	}
	return err
}

// Evict removes s, closes its transport and, if it was still registered,
// announces its departure. Evicting twice has the effect of evicting once.
func (b *Broadcaster) Evict(s *Session, cause error) {
	s.SetState(StateTerminating)
	nickname, removed := b.registry.Remove(s)
	_ = s.Close()
	if !removed {
		return
	}

	b.log.Warn().
		Err(cause).
		Str("session_id", s.ID).
		Str("nickname", nickname).
		Msg("session evicted")
	b.announceDeparture(nickname)
}

// Mute stops departure notices, used once the room is shutting down. It
// reports whether the broadcaster was already muted.
func (b *Broadcaster) Mute() bool {
	return b.muted.Swap(true)
}

func (b *Broadcaster) announceDeparture(nickname string) {
	if b.muted.Load() {
		return
	}
	b.Send(LeftNotice(nickname), nil)
}
