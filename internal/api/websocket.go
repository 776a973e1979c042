package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is a job-lifecycle notification pushed to subscribed clients.
type Event struct {
	Type  string `json:"type"`
	JobID string `json:"job_id"`
}

// subscriber pairs a websocket connection with the optional job_id filter
// it asked for at subscribe time. A dashboard watching one scan's progress
// only wants that job's events, not the full firehose of every concurrent
// scan in the fleet.
type subscriber struct {
	conn  *websocket.Conn
	jobID string // empty means "every job"
}

// Hub maintains the set of active websocket clients and fans out
// job-lifecycle events to whichever clients subscribed to them.
type Hub struct {
	clients   map[*websocket.Conn]*subscriber
	broadcast chan Event
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan Event, 256),
		clients:   make(map[*websocket.Conn]*subscriber),
	}
}

func (h *Hub) Run() {
	for ev := range h.broadcast {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[Stream] failed to encode event: %v", err)
			continue
		}
		h.mutex.Lock()
		for conn, sub := range h.clients {
			if sub.jobID != "" && sub.jobID != ev.JobID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[Stream] write error: %v", err)
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades the request to a websocket connection. An optional
// ?job_id= query parameter scopes the subscription to one job's events;
// omitted, the client receives every job's events.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Stream] failed to upgrade: %v", err)
		return
	}

	jobID := c.Query("job_id")

	h.mutex.Lock()
	h.clients[conn] = &subscriber{conn: conn, jobID: jobID}
	total := len(h.clients)
	h.mutex.Unlock()

	log.Printf("[Stream] client connected, job_id=%q total=%d", jobID, total)

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			remaining := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("[Stream] client disconnected, total=%d", remaining)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[Stream] read error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast publishes a job-lifecycle event to every subscriber watching
// that job, or watching every job.
func (h *Hub) Broadcast(ev Event) {
	h.broadcast <- ev
}
