package adaptor

import (
	"errors"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/zmahdi/wasla/server/domain"
)

const sendBuffer = 64

var errConnClosed = errors.New("connection closed")
var errSendBufferFull = errors.New("send buffer full")

// wsConn adapts a websocket connection to domain.Conn. Writes go through a
// buffered channel and a single write pump so broadcasts never block on a
// slow socket; a full buffer drops the event.
type wsConn struct {
	conn *websocket.Conn
	send chan domain.Event
	done chan struct{}
	once sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	w := &wsConn{
		conn: conn,
		send: make(chan domain.Event, sendBuffer),
		done: make(chan struct{}),
	}
	go w.writePump()
	return w
}

func (w *wsConn) writePump() {
	for {
		select {
		case <-w.done:
			return
		case event := <-w.send:
			if err := w.conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

func (w *wsConn) Send(event domain.Event) error {
	select {
	case <-w.done:
		return errConnClosed
	default:
	}
	select {
	case w.send <- event:
		return nil
	default:
		return errSendBufferFull
	}
}

func (w *wsConn) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.conn.Close()
	})
	return err
}
