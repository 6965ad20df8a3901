package goSession

import "sync"

type subscriber struct {
	ch   chan State
	once sync.Once
}

// deliver never blocks: when the channel is full the oldest undelivered state
// is dropped to make room. Callers hold Store.mu, so sends are ordered.
func (sub *subscriber) deliver(st State) {
	select {
	case sub.ch <- st:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- st:
	default:
	}
}

func (sub *subscriber) close() {
	sub.once.Do(func() { close(sub.ch) })
}

// Subscribe returns a channel that receives the current state immediately and
// every later transition. A slow reader loses the oldest undelivered states,
// never the latest. buffer <= 0 uses Config.Notify.SubscriberBuffer. The
// channel is closed by cancel or by Store.Close.
func (s *Store) Subscribe(buffer int) (<-chan State, func()) {
	if buffer <= 0 {
		buffer = s.config.Notify.SubscriberBuffer
	}
	sub := &subscriber{ch: make(chan State, buffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = sub
	sub.deliver(State{Phase: s.state.Phase, Session: s.state.Session.Clone()})
	s.mu.Unlock()

	return sub.ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.close()
	}
}

// setStateLocked stores next and fans it out when it differs from the
// current state. Callers hold s.mu for writing.
func (s *Store) setStateLocked(next State) {
	if sameState(s.state, next) {
		return
	}
	s.state = State{Phase: next.Phase, Session: next.Session.Clone()}
	for _, sub := range s.subs {
		sub.deliver(State{Phase: next.Phase, Session: next.Session.Clone()})
	}
}

func sameState(a, b State) bool {
	if a.Phase != b.Phase {
		return false
	}
	if a.Session == nil || b.Session == nil {
		return a.Session == nil && b.Session == nil
	}
	return *a.Session == *b.Session
}
