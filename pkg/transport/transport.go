package transport

import (
	"errors"
	"time"
)

// Transport es el colaborador de transporte del núcleo de enlace:
// un ducto duplex orientado a bytes (en el laboratorio original, un
// puerto COM). La enumeración y apertura de dispositivos reales queda
// fuera de esta capa.
type Transport interface {
	// ReadByte bloquea hasta timeout esperando un byte. ok es false
	// cuando venció el timeout sin datos; err se reserva para fallos
	// de E/S reales (transporte cerrado incluido).
	ReadByte(timeout time.Duration) (b byte, ok bool, err error)

	// Write envía los bytes al otro extremo.
	Write(p []byte) error

	// IsOpen indica si el transporte sigue utilizable.
	IsOpen() bool

	// Close cierra el transporte; los ReadByte bloqueados deben
	// desbloquearse dentro de un timeout de lectura.
	Close() error
}

// ErrClosed se devuelve al operar sobre un transporte cerrado.
var ErrClosed = errors.New("transport: transporte cerrado")
