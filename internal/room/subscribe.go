package room

import "github.com/signalsfoundry/td-engine/internal/sim/state"

// Subscribe registers for snapshots. The channel holds at most one pending
// snapshot: a slow reader skips intermediate states rather than stalling
// the tick. The channel is closed by cancel or when the room closes.
func (r *Room) Subscribe() (<-chan *state.Snapshot, func()) {
	ch := make(chan *state.Snapshot, 1)

	r.subMu.Lock()
	if r.subsClosed {
		r.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	if snap := r.latest.Load(); snap != nil {
		ch <- snap
	}
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Subscribers returns the number of open subscriptions.
func (r *Room) Subscribers() int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.subs)
}

func (r *Room) publish(snap *state.Snapshot) {
	if snap == nil {
		return
	}
	r.latest.Store(snap)

	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
			// Replace the stale pending snapshot with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
