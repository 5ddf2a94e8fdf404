package streamer

import "github.com/IvanBrykalov/tilestream/tier"

type taskState uint8

const (
	taskQueued taskState = iota
	taskRunning
)

// task is one pending decode for a key. Every ticket for the key attaches to
// the same task, so a key is decoded once no matter how many entities wait.
type task struct {
	key      tier.Key
	state    taskState
	enqueued int64
	waiters  []*Ticket
}

func (t *task) detach(tk *Ticket) {
	for i, w := range t.waiters {
		if w == tk {
			last := len(t.waiters) - 1
			t.waiters[i] = t.waiters[last]
			t.waiters[last] = nil
			t.waiters = t.waiters[:last]
			return
		}
	}
}
