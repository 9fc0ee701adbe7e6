package transport

import (
	"sync"
	"time"
)

// Loopback es un transporte en memoria respaldado por canales. Pair
// devuelve dos extremos cruzados que hacen de par de puertos
// null-modem: lo que un extremo escribe lo lee el otro, byte a byte.
type Loopback struct {
	in  chan byte
	out chan byte

	mu       sync.Mutex
	closed   bool
	done     chan struct{}
	peerDone chan struct{}
}

// Pair crea los dos extremos conectados. bufSize dimensiona la cola de
// bytes en tránsito en cada dirección.
func Pair(bufSize int) (*Loopback, *Loopback) {
	if bufSize <= 0 {
		bufSize = 1024
	}
	ab := make(chan byte, bufSize)
	ba := make(chan byte, bufSize)
	a := &Loopback{in: ba, out: ab, done: make(chan struct{})}
	b := &Loopback{in: ab, out: ba, done: make(chan struct{})}
	a.peerDone = b.done
	b.peerDone = a.done
	return a, b
}

// ReadByte espera un byte entrante hasta timeout.
func (l *Loopback) ReadByte(timeout time.Duration) (byte, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b, ok := <-l.in:
		if !ok {
			return 0, false, ErrClosed
		}
		return b, true, nil
	case <-l.done:
		// Vaciar lo que quedó pendiente antes de reportar el cierre.
		select {
		case b := <-l.in:
			return b, true, nil
		default:
			return 0, false, ErrClosed
		}
	case <-timer.C:
		return 0, false, nil
	}
}

// Write encola los bytes hacia el otro extremo. Si la cola se llena y
// cualquiera de los dos extremos se cierra, la escritura pendiente se
// desbloquea con ErrClosed en lugar de quedarse colgada.
func (l *Loopback) Write(p []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	for _, b := range p {
		select {
		case l.out <- b:
		case <-l.done:
			return ErrClosed
		case <-l.peerDone:
			return ErrClosed
		}
	}
	return nil
}

// IsOpen indica si este extremo no fue cerrado.
func (l *Loopback) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// Close cierra este extremo; las lecturas y escrituras pendientes se
// desbloquean con ErrClosed.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)
	return nil
}
