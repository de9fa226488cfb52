package feed

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const defaultBuffer = 16

// Broker delivers events to in-process subscribers, scoped by company.
// Slow subscribers drop events rather than block publishers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
	log    zerolog.Logger
}

func NewBroker(buffer int, log zerolog.Logger) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: buffer,
		log:    log.With().Str("component", "broker").Logger(),
	}
}

// Subscribe registers for a company's events. The returned cancel func
// unregisters and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(companyID string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.subs[companyID] == nil {
		b.subs[companyID] = make(map[chan Event]struct{})
	}
	b.subs[companyID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[companyID], ch)
			if len(b.subs[companyID]) == 0 {
				delete(b.subs, companyID)
			}
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish implements Sink.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	companyID := ev.CompanyID()
	if companyID == "" {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[companyID] {
		select {
		case ch <- ev:
		default:
			b.log.Warn().Str("company_id", companyID).Msg("subscriber buffer full, dropping event")
		}
	}
}

// Subscribers returns the number of active subscribers for a company.
func (b *Broker) Subscribers(companyID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[companyID])
}
