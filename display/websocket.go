package cubeview

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	Ct "github.com/maroda/cubeview/types"
)

// CubeFrame is one render-ready push to the browser
type CubeFrame struct {
	Cells         []Ct.Cell                `json:"cells"`
	Description   string                   `json:"description"`
	Statistics    Ct.CubeStatistics        `json:"statistics"`
	Pivot         map[Ct.Axis]Ct.Dimension `json:"pivot"`
	Measure       Ct.Measure               `json:"measure"`
	LastOperation *Ct.HistoryRecord        `json:"lastOperation,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 2 * time.Second

// wsClient serializes writes, gorilla allows one writer per connection
type wsClient struct {
	MU   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) send(frame CubeFrame) error {
	c.MU.Lock()
	defer c.MU.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

// Hub tracks connected websocket clients
type Hub struct {
	MU      sync.Mutex
	clients map[*wsClient]struct{}
	onCount func(int)
}

func NewHub(onCount func(int)) *Hub {
	if onCount == nil {
		onCount = func(int) {}
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		onCount: onCount,
	}
}

func (h *Hub) add(conn *websocket.Conn) *wsClient {
	h.MU.Lock()
	defer h.MU.Unlock()

	c := &wsClient{conn: conn}
	h.clients[c] = struct{}{}
	h.onCount(len(h.clients))
	return c
}

func (h *Hub) remove(c *wsClient) {
	h.MU.Lock()
	defer h.MU.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.conn.Close()
	h.onCount(len(h.clients))
}

// Len is the number of connected clients
func (h *Hub) Len() int {
	h.MU.Lock()
	defer h.MU.Unlock()
	return len(h.clients)
}

// Send pushes the frame to every client, dropping any that fail
func (h *Hub) Send(frame CubeFrame) {
	h.MU.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.MU.Unlock()

	for _, c := range clients {
		if err := c.send(frame); err != nil {
			slog.Debug("Dropping websocket client", slog.Any("Error", err))
			h.remove(c)
		}
	}
}

// WebsocketHandler sends the current frame on connect,
// later frames arrive through Broadcast
func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	hub := v.hub()
	client := hub.add(conn)
	defer hub.remove(client)

	if err := client.send(v.GetCubeFrame()); err != nil {
		return // Connection closed
	}

	// Reads only detect the close, the browser never sends anything useful
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// GetCubeFrame collects everything the browser needs to draw the cube
func (v *View) GetCubeFrame() CubeFrame {
	// Make sure we're not nil
	cube := v.cube()
	if cube == nil {
		return CubeFrame{Cells: []Ct.Cell{}}
	}

	frame := CubeFrame{
		Cells:       cube.Project(),
		Description: cube.CurrentLevelDescription(),
		Statistics:  cube.Statistics(),
		Pivot:       cube.PivotState(),
		Measure:     cube.Measure(),
	}
	if last, ok := cube.LastOperation(); ok {
		frame.LastOperation = &last
	}
	return frame
}

// Broadcast pushes the current frame to every websocket client
func (v *View) Broadcast() {
	hub := v.hub()
	if hub.Len() == 0 {
		return
	}
	hub.Send(v.GetCubeFrame())
}

// hub creates the Hub on first use so a bare View still serves /ws
func (v *View) hub() *Hub {
	v.MU.Lock()
	defer v.MU.Unlock()

	if v.Hub == nil {
		var onCount func(int)
		if v.Stats != nil {
			onCount = v.Stats.RecClients
		}
		v.Hub = NewHub(onCount)
	}
	return v.Hub
}
