package execution

// NonceCursor remembers the last nonce this process broadcast so a lagging
// chain count never causes reuse.
type NonceCursor struct {
	last uint64
	used bool
}

// Next returns max(chainNonce, last+1), or chainNonce before anything was used.
func (c *NonceCursor) Next(chainNonce uint64) uint64 {
	if !c.used || chainNonce > c.last {
		return chainNonce
	}
	return c.last + 1
}

// Commit records a nonce after its transaction was accepted by the node.
func (c *NonceCursor) Commit(nonce uint64) {
	if !c.used || nonce > c.last {
		c.last = nonce
		c.used = true
	}
}

// Last returns the last committed nonce.
func (c *NonceCursor) Last() (uint64, bool) {
	return c.last, c.used
}
