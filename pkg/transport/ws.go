package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport implementa Transport sobre una conexión WebSocket:
// cada Write viaja como un mensaje binario y los mensajes entrantes se
// desgranan byte a byte para ReadByte. Permite llevar el flujo de
// cadres a través de un socket real en lugar del loopback.
type WSTransport struct {
	conn *websocket.Conn
	in   chan byte

	mu     sync.Mutex
	closed bool
}

const wsWriteTimeout = 5 * time.Second

// DialWS se conecta al servidor WebSocket en url y arranca la bomba
// de lectura.
func DialWS(url string) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("conectando a %s: %w", url, err)
	}
	w := &WSTransport{
		conn: conn,
		in:   make(chan byte, 4096),
	}
	go w.readPump()
	return w, nil
}

// readPump lee mensajes binarios y los desgrana en el canal de bytes.
func (w *WSTransport) readPump() {
	defer close(w.in)
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		for _, b := range data {
			w.in <- b
		}
	}
}

// ReadByte espera el siguiente byte entrante hasta timeout.
func (w *WSTransport) ReadByte(timeout time.Duration) (byte, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b, ok := <-w.in:
		if !ok {
			return 0, false, ErrClosed
		}
		return b, true, nil
	case <-timer.C:
		return 0, false, nil
	}
}

// Write envía los bytes como un mensaje binario con deadline de
// escritura.
func (w *WSTransport) Write(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, p)
}

// IsOpen indica si la conexión no fue cerrada localmente.
func (w *WSTransport) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

// Close cierra la conexión; la bomba de lectura termina sola al fallar
// la siguiente lectura.
func (w *WSTransport) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.conn.Close()
}
