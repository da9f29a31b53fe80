package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fiblab-sim/moss-core/events"
)

// DebugServer exposes a running Sim over HTTP for local inspection:
// /healthz and /status report current progress, /metrics serves the
// Sim's private Prometheus registry, and /events upgrades to a
// websocket that streams every events.Event the sim emits, JSON-encoded
// one per frame. Grounded on the gin-based HTTP services and the
// gorilla/websocket broadcast pattern found elsewhere in the pack;
// there is no teacher counterpart since task/simulet.go only exposed
// itself over the syncer's gRPC sidecar, which this core drops (see
// DESIGN.md).
type DebugServer struct {
	sim    *Sim
	router *gin.Engine
	srv    *http.Server

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*websocket.Conn]chan events.Event
}

// NewDebugServer builds the router and wires a Sim.OnEvent listener
// that fans events out to every connected websocket subscriber.
func NewDebugServer(s *Sim) *DebugServer {
	gin.SetMode(gin.ReleaseMode)
	d := &DebugServer{
		sim:      s,
		router:   gin.New(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		subs:     make(map[*websocket.Conn]chan events.Event),
	}
	d.router.Use(gin.Recovery())
	d.router.GET("/healthz", d.handleHealthz)
	d.router.GET("/status", d.handleStatus)
	d.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Metrics().Registry, promhttp.HandlerOpts{})))
	d.router.GET("/events", d.handleEvents)
	s.OnEvent(d.broadcast)
	return d
}

func (d *DebugServer) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (d *DebugServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"t":        d.sim.Now(),
		"cars":     len(d.sim.cars),
		"peds":     len(d.sim.peds),
		"queues":   len(d.sim.queues),
		"arbiters": len(d.sim.arbiters),
		"halted":   d.sim.halted,
	})
}

func (d *DebugServer) handleEvents(c *gin.Context) {
	conn, err := d.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	ch := make(chan events.Event, 256)
	d.mu.Lock()
	d.subs[conn] = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.subs, conn)
		d.mu.Unlock()
		conn.Close()
	}()
	for e := range ch {
		b, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

// broadcast is registered as a Sim.OnEvent listener. It never blocks
// the sim loop: a subscriber whose channel is full is dropped rather
// than slowing down the simulation it's trying to observe.
func (d *DebugServer) broadcast(e events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for conn, ch := range d.subs {
		select {
		case ch <- e:
		default:
			delete(d.subs, conn)
			close(ch)
		}
	}
}

// ListenAndServe starts the HTTP server on addr. Call in a goroutine;
// it blocks until Shutdown is called or the listener fails.
func (d *DebugServer) ListenAndServe(addr string) error {
	d.srv = &http.Server{Addr: addr, Handler: d.router}
	log.Infof("debug server listening on %s", addr)
	if err := d.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("sim: debug server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (d *DebugServer) Shutdown(ctx context.Context) error {
	if d.srv == nil {
		return nil
	}
	return d.srv.Shutdown(ctx)
}
