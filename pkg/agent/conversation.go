package agent

import "sync"

// Message is one turn of the session conversation.
type Message struct {
	Role    string // user, assistant
	Content string
}

// conversation holds the session-scoped history shared across runs. Runs
// stage their turns and commit only what may be seen by the next run, so a
// cancelled or failed run never leaks partial state.
type conversation struct {
	mu       sync.Mutex
	messages []Message
}

// snapshot returns a copy of the committed history.
func (c *conversation) snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// commit appends fully-formed turns to the history.
func (c *conversation) commit(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		c.messages = append(c.messages, m)
	}
}

// reset drops all history.
func (c *conversation) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

func (c *conversation) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
