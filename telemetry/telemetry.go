// Package telemetry exposes a read-only websocket feed of ring-buffer
// occupancy, the tail block's step count, nominal rate and busy bit, and
// the A and E axis positions, for a host
// dashboard or a test harness to observe the planner from outside without
// touching its admission or control surface.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onekk/gplanner/internal/logger"
	"github.com/onekk/gplanner/planner"
)

// Snapshot is one frame pushed to every connected client.
type Snapshot struct {
	QueueLen    uint32  `json:"queue_len"`
	QueueCap    uint32  `json:"queue_cap"`
	TailSteps   uint32  `json:"tail_step_event_count"`
	TailRateHz  uint32  `json:"tail_nominal_rate_hz"`
	TailBusy    bool    `json:"tail_busy"`
	PositionMMA float64 `json:"position_mm_a"`
	PositionMME float64 `json:"position_mm_e"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server streams Snapshot frames to any client that connects, at the given
// interval, until the request context is cancelled.
type Server struct {
	p        *planner.Planner
	interval time.Duration
}

func NewServer(p *planner.Planner, interval time.Duration) *Server {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Server{p: p, interval: interval}
}

func (s *Server) snapshot() Snapshot {
	rb := s.p.RingBuffer()
	tail := rb.At(rb.Tail())
	return Snapshot{
		QueueLen:    rb.Len(),
		QueueCap:    rb.Cap(),
		TailSteps:   tail.StepEventCount,
		TailRateHz:  tail.NominalRate,
		TailBusy:    tail.IsBusy(),
		PositionMMA: s.p.AxisPositionMM(0),
		PositionMME: s.p.AxisPositionMM(3),
	}
}

// ServeHTTP upgrades the connection and streams snapshots until the client
// disconnects. It never reads application messages from the client: this
// feed is strictly one-way, per spec.md's status-only contract.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("telemetry: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := json.Marshal(s.snapshot())
			if err != nil {
				logger.Errorf("telemetry: marshal snapshot: %v", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(s.interval))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// Run is a convenience helper for a host that wants to drive the feed from
// its own goroutine rather than net/http's server loop directly.
func Run(ctx context.Context, addr string, p *planner.Planner, interval time.Duration) error {
	srv := NewServer(p, interval)
	mux := http.NewServeMux()
	mux.Handle("/telemetry", srv)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	err := httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
