package wave

import "github.com/signalsfoundry/td-engine/catalog"

// Dispatcher walks a spawn queue one archetype at a time. It carries no
// clock: the owner decides when Next is due. A Dispatcher is not safe for
// concurrent use; the match guards it with its own lock.
type Dispatcher struct {
	queue []catalog.EnemyKind
	next  int
	total int
}

// Start replaces any pending sequence with queue.
func (d *Dispatcher) Start(queue []catalog.EnemyKind) {
	d.queue = append(d.queue[:0], queue...)
	d.next = 0
	d.total = len(queue)
}

// Next pops the next archetype. ok is false once the queue is exhausted.
func (d *Dispatcher) Next() (kind catalog.EnemyKind, ok bool) {
	if d.next >= len(d.queue) {
		return "", false
	}
	kind = d.queue[d.next]
	d.next++
	return kind, true
}

// Remaining is the number of archetypes not yet dispatched.
func (d *Dispatcher) Remaining() int {
	return len(d.queue) - d.next
}

// Dispatched is the number of archetypes handed out since Start.
func (d *Dispatcher) Dispatched() int {
	return d.next
}

// Total is the length of the sequence passed to Start.
func (d *Dispatcher) Total() int {
	return d.total
}

// Exhausted reports whether nothing is left to dispatch.
func (d *Dispatcher) Exhausted() bool {
	return d.Remaining() == 0
}

// Reset drops any pending sequence.
func (d *Dispatcher) Reset() {
	d.queue = d.queue[:0]
	d.next = 0
	d.total = 0
}
