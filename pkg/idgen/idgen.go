package idgen

// Counter hands out track ids 0,1,2...
// Each annotation document owns its own Counter, so two documents
// never share an id sequence.
// Counter is not safe for concurrent use. The owner of the document serializes access.
type Counter struct {
	next int
}

// Next returns the current value, and then increments the counter.
func (c *Counter) Next() int {
	n := c.next
	c.next++
	return n
}

// Peek returns the value that Next would return, without consuming it.
func (c *Counter) Peek() int {
	return c.next
}

// Reset overwrites the counter.
// This is used when restoring a saved document, and when clearing one (v = 0).
// Reset does not look at the ids already in use.
func (c *Counter) Reset(v int) {
	c.next = v
}
