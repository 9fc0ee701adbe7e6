package stuffing

import "fmt"

// Table define la tabla cerrada de byte-stuffing: cada byte reservado
// (los dos bytes del flag, el propio ESC y el byte de jam) se reemplaza
// por la pareja ESC‖byte dentro del cuerpo del cadre. La tabla es una
// biyección fija, no un mapa genérico: el invariante es que ningún byte
// reservado aparece sin escapar dentro de una región stuffeada. El byte
// de jam se reserva para que un jam crudo en el cable sea inequívoco:
// un cuerpo stuffeado nunca lo contiene, ni siquiera cuando la
// corrupción o el FCS producen ese valor.
type Table struct {
	FlagStart byte
	FlagEnd   byte
	Esc       byte
	Jam       byte
}

// NewTable construye la tabla y valida que los bytes reservados no se
// solapen entre sí. Un alias rompería la biyección y haría ambiguo el
// de-stuffing.
func NewTable(flagStart, flagEnd, esc, jam byte) (*Table, error) {
	if flagStart == flagEnd {
		return nil, fmt.Errorf("bytes reservados en conflicto: FLAG_START y FLAG_END son ambos 0x%02X", flagStart)
	}
	if flagStart == esc || flagEnd == esc {
		return nil, fmt.Errorf("bytes reservados en conflicto: ESC 0x%02X coincide con un byte de flag", esc)
	}
	if jam == flagStart || jam == flagEnd || jam == esc {
		return nil, fmt.Errorf("bytes reservados en conflicto: JAM 0x%02X coincide con otro byte reservado", jam)
	}
	return &Table{FlagStart: flagStart, FlagEnd: flagEnd, Esc: esc, Jam: jam}, nil
}

// IsReserved indica si b pertenece al alfabeto reservado de la tabla.
func (t *Table) IsReserved(b byte) bool {
	return b == t.FlagStart || b == t.FlagEnd || b == t.Esc || b == t.Jam
}

// Stuff aplica el byte-stuffing de izquierda a derecha: cada byte
// reservado se emite como ESC‖byte, el resto pasa sin cambios.
// Nunca falla y no tiene efectos secundarios.
func (t *Table) Stuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if t.IsReserved(b) {
			out = append(out, t.Esc, b)
		} else {
			out = append(out, b)
		}
	}
	return out
}

// StuffAnnotated hace lo mismo que Stuff pero además devuelve los
// índices del resultado que fueron añadidos o alterados por el
// escape (ambos bytes de cada pareja ESC‖byte). La vista de cadres
// usa estos índices para resaltar el stuffing.
func (t *Table) StuffAnnotated(data []byte) (out []byte, escaped []int) {
	out = make([]byte, 0, len(data))
	for _, b := range data {
		if t.IsReserved(b) {
			escaped = append(escaped, len(out), len(out)+1)
			out = append(out, t.Esc, b)
		} else {
			out = append(out, b)
		}
	}
	return out, escaped
}

// Destuff invierte Stuff: recorre la entrada probando cada posición
// como posible pareja escapada (ESC seguido de un byte reservado).
// Si la pareja es válida emite el byte original y avanza dos
// posiciones; si no, emite el byte actual y avanza una. Un byte final
// sin sucesor se emite tal cual (no puede ser parte de una pareja).
//
// Garantía: Destuff(Stuff(x)) == x para toda secuencia x. Sobre
// entradas que no provienen de Stuff el resultado puede
// desincronizarse; esa corrección no se hace en esta capa.
func (t *Table) Destuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if data[i] == t.Esc && i+1 < len(data) && t.IsReserved(data[i+1]) {
			out = append(out, data[i+1])
			i += 2
			continue
		}
		out = append(out, data[i])
		i++
	}
	return out
}

// StuffedLen devuelve la longitud que tendría data tras el stuffing,
// sin construir el resultado.
func (t *Table) StuffedLen(data []byte) int {
	n := len(data)
	for _, b := range data {
		if t.IsReserved(b) {
			n++
		}
	}
	return n
}
