package server

import "context"

// cycle is one stop, invalidate, start sequence shared by every caller
// coalesced into it.
type cycle struct {
	done         chan struct{}
	err          error
	invalidating bool
	callers      int
}

func newCycle() *cycle {
	return &cycle{done: make(chan struct{})}
}

// Restarts returns the channel that receives one value per completed
// restart cycle. Events are dropped when the buffer is full.
func (s *DevServer) Restarts() <-chan struct{} {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()
	if s.restarts == nil {
		s.restarts = make(chan struct{}, 16)
	}
	return s.restarts
}

// RestartHTTPServer stops the server, drops cached middleware modules and
// starts it again.
//
// Requests are coalesced. A request made while a cycle has not yet reached
// module invalidation joins that cycle. A request made after invalidation
// began shares a single follow-up cycle with every other such request. The
// call returns when the cycle it joined has finished.
func (s *DevServer) RestartHTTPServer(ctx context.Context) error {
	s.restartMu.Lock()
	var c *cycle
	switch {
	case s.inflight == nil:
		c = newCycle()
		s.inflight = c
		go s.runCycles(c)
	case !s.inflight.invalidating:
		c = s.inflight
	case s.next != nil:
		c = s.next
	default:
		c = newCycle()
		s.next = c
	}
	c.callers++
	s.restartMu.Unlock()

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DevServer) runCycles(c *cycle) {
	for c != nil {
		c.err = s.restart(c)
		close(c.done)

		s.restartMu.Lock()
		c = s.next
		s.next = nil
		s.inflight = c
		s.restartMu.Unlock()
	}
}

func (s *DevServer) restart(c *cycle) error {
	ctx := context.Background()
	if err := s.Stop(); err != nil {
		s.logger.Warn(ctx, err, "stopping server for restart")
	}

	if s.beforeInvalidate != nil {
		s.beforeInvalidate()
	}
	s.restartMu.Lock()
	c.invalidating = true
	s.restartMu.Unlock()
	if s.afterInvalidate != nil {
		s.afterInvalidate()
	}

	if dir := s.opts.MiddlewareDir; dir != "" {
		n := s.modules.InvalidatePrefix(dir)
		s.logger.Debug(ctx, "invalidated middleware modules", "count", n)
	}

	if err := s.Start(ctx); err != nil {
		return err
	}

	s.restartMu.Lock()
	restarts := s.restarts
	s.restartMu.Unlock()
	if restarts != nil {
		select {
		case restarts <- struct{}{}:
		default:
		}
	}
	s.ui.WriteLine("Server restarted.")
	s.logger.Info(ctx, "server restarted")
	return nil
}
