package zonecontrol

import "context"

// pollNow fetches status once, as the timer would
func (c *Controller) pollNow(ctx context.Context) {
	c.mu.Lock()
	gen := c.generation
	active := c.target != nil
	c.mu.Unlock()

	if active {
		c.poll(ctx, gen)
	}
}
