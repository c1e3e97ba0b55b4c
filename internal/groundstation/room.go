package groundstation

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shiwa/fc-core/internal/logger"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 16
)

// Room раздаёт кадры всем подключённым websocket клиентам.
// Медленный клиент теряет кадры, остальные не ждут его.
type Room struct {
	forward chan []byte
	join    chan *client
	leave   chan *client
	clients map[*client]bool
	done    chan struct{}
	log     *logger.Logger

	upgrader websocket.Upgrader
}

// NewRoom создаёт комнату; запустить Run.
func NewRoom(log *logger.Logger) *Room {
	if log == nil {
		log = logger.Default()
	}
	return &Room{
		forward:  make(chan []byte, messageBufferSize),
		join:     make(chan *client),
		leave:    make(chan *client),
		clients:  make(map[*client]bool),
		done:     make(chan struct{}),
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize},
	}
}

// Run обслуживает комнату до отмены ctx.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			for c := range r.clients {
				delete(r.clients, c)
				close(c.send)
			}
			return
		case c := <-r.join:
			r.clients[c] = true
			r.log.Info("websocket client joined (%d)", len(r.clients))
		case c := <-r.leave:
			if r.clients[c] {
				delete(r.clients, c)
				close(c.send)
				r.log.Info("websocket client left (%d)", len(r.clients))
			}
		case msg := <-r.forward:
			for c := range r.clients {
				select {
				case c.send <- msg:
				default:
					r.log.Debug("websocket client is slow, frame dropped")
				}
			}
		}
	}
}

// Record отправляет кадр в комнату как JSON. Если комната не успевает, кадр отбрасывается.
func (r *Room) Record(_ context.Context, rec Record) error {
	msg, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	select {
	case r.forward <- msg:
	default:
	}
	return nil
}

// wireFrame — кадр для websocket; нечисловые значения (NaN, ±Inf) передаются как null.
type wireFrame struct {
	Kind   string     `json:"kind"`
	Values []*float64 `json:"values"`
}

type wireRecord struct {
	Session string    `json:"session"`
	Time    time.Time `json:"time"`
	Frame   wireFrame `json:"frame"`
}

func encodeRecord(rec Record) ([]byte, error) {
	values := make([]*float64, len(rec.Frame.Values))
	for i := range rec.Frame.Values {
		v := rec.Frame.Values[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			values[i] = &v
		}
	}
	return json.Marshal(wireRecord{
		Session: rec.Session,
		Time:    rec.Time,
		Frame:   wireFrame{Kind: rec.Frame.Kind, Values: values},
	})
}

func (r *Room) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	socket, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Error("websocket upgrade: %v", err)
		return
	}
	c := &client{
		socket: socket,
		send:   make(chan []byte, messageBufferSize),
	}
	select {
	case r.join <- c:
	case <-r.done:
		socket.Close()
		return
	}
	defer func() {
		select {
		case r.leave <- c:
		case <-r.done:
		}
	}()
	go c.write()
	c.read()
}

type client struct {
	socket *websocket.Conn
	send   chan []byte
}

// read нужен только чтобы заметить закрытие соединения.
func (c *client) read() {
	defer c.socket.Close()
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) write() {
	defer c.socket.Close()
	for msg := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
