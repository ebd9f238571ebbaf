package services

import (
	"log"
	"time"
)

// SessionSweeper periodically drops cached trackers of sessions nobody has
// touched for a while. Evicted sessions are rebuilt from the store on their
// next request.
type SessionSweeper struct {
	service   *GameService
	stopCh    chan struct{}
	interval  time.Duration
	idleAfter time.Duration
}

// NewSessionSweeper creates a sweeper. Non-positive durations select the
// defaults of one minute between passes and thirty minutes of idleness.
func NewSessionSweeper(service *GameService, interval, idleAfter time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if idleAfter <= 0 {
		idleAfter = 30 * time.Minute
	}
	return &SessionSweeper{
		service:   service,
		stopCh:    make(chan struct{}),
		interval:  interval,
		idleAfter: idleAfter,
	}
}

// Start begins the sweep loop in a background goroutine.
func (s *SessionSweeper) Start() {
	go s.runLoop()
	log.Printf("Session sweeper started (interval: %s, idle after: %s)", s.interval, s.idleAfter)
}

// Stop signals the sweep loop to exit.
func (s *SessionSweeper) Stop() {
	close(s.stopCh)
	log.Println("Session sweeper stopped")
}

func (s *SessionSweeper) runLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runPass()
		}
	}
}

func (s *SessionSweeper) runPass() int {
	n := s.service.EvictIdle(s.idleAfter)
	if n > 0 {
		log.Printf("Session sweeper: evicted %d idle session(s), %d cached", n, s.service.CachedSessions())
	}
	return n
}
