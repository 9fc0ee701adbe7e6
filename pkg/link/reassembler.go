package link

import (
	"bytes"
	"errors"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/frame"
)

// Límites del buffer de recepción del laboratorio: si el buffer
// supera maxBuffer sin un flag reconocible se recorta a la cola de
// keepTail bytes (un flag puede llegar partido entre dos lecturas,
// por eso nunca se vacía del todo).
const (
	defaultMaxBuffer = 100
	defaultKeepTail  = 50
)

// Reassembler consume el flujo de bytes entrante de un endpoint,
// localiza los flags, aísla ventanas de cadre y se las entrega al
// códec. Mantiene el estado de cadres parciales y la recuperación de
// basura. No es seguro para uso concurrente: pertenece en exclusiva a
// la tarea de recepción de su endpoint.
type Reassembler struct {
	codec     *frame.Codec
	buf       []byte
	maxBuffer int
	keepTail  int

	onFrame func(*frame.ParsedFrame)
	onDesync func(discarded int)
}

// NewReassembler crea un reensamblador que invoca onFrame por cada
// cadre completo parseado. onDesync (opcional) se invoca al
// resincronizar tras un cadre malformado, con los bytes descartados.
func NewReassembler(codec *frame.Codec, onFrame func(*frame.ParsedFrame), onDesync func(discarded int)) *Reassembler {
	return &Reassembler{
		codec:     codec,
		maxBuffer: defaultMaxBuffer,
		keepTail:  defaultKeepTail,
		onFrame:   onFrame,
		onDesync:  onDesync,
	}
}

// Push agrega bytes al buffer y procesa todos los cadres completos
// que haya en él.
func (r *Reassembler) Push(data []byte) {
	r.buf = append(r.buf, data...)
	flag := r.codec.Flag()

	for {
		start := bytes.Index(r.buf, flag)
		if start == -1 {
			// Sin inicio de cadre: recortar si se acumuló demasiada
			// basura, conservando la cola.
			if len(r.buf) > r.maxBuffer {
				r.buf = append(r.buf[:0:0], r.buf[len(r.buf)-r.keepTail:]...)
			}
			return
		}

		parsed, consumed, err := r.codec.TryParseFrame(r.buf[start:])
		switch {
		case err == nil:
			r.onFrame(parsed)
			// Quitar del frente exactamente la basura previa más los
			// bytes consumidos; lo que sigue puede contener más cadres.
			r.buf = append(r.buf[:0:0], r.buf[start+consumed:]...)
		case errors.Is(err, frame.ErrIncomplete):
			// Esperar más bytes.
			return
		default:
			// Malformado: resincronizar saltando el flag completo para
			// no reescanear lo mismo.
			if r.onDesync != nil {
				r.onDesync(start + len(flag))
			}
			r.buf = append(r.buf[:0:0], r.buf[start+len(flag):]...)
		}
	}
}

// Pending devuelve cuántos bytes esperan en el buffer (visibilidad
// para tests y estado).
func (r *Reassembler) Pending() int { return len(r.buf) }
