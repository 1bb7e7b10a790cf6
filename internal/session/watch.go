// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

// Watch returns a channel that receives the current state immediately and
// every later transition in order. When a watcher's buffer is full the
// oldest buffered state is discarded to make room, so the provider never
// blocks and the last state a reader receives is always the current one.
//
// The returned cancel function stops delivery and closes the channel.
// Closing the controller closes every watcher channel.
func (c *Controller) Watch(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()

	ch <- c.state
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(w)
		}
	}
}
