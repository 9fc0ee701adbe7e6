package frame

import (
	"errors"
	"fmt"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/hamming"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/stuffing"
)

// Estructura del cadre en el cable:
//
//	FLAG(2) | SA(1) | DA(1) | stuff( DATA(DATA_LENGTH) [ + FCS(FCS_LENGTH) ] )
//
// DATA_LENGTH = N+1 bytes fijos (chunks cortos se rellenan con ceros a
// la derecha). El FCS, cuando está habilitado, contiene los r+1 bits
// de paridad del código Hamming SEC-DED sobre los DATA_LENGTH*8 bits
// de datos, empaquetados MSB primero en FCS_LENGTH = ceil((r+1)/8)
// bytes.

// Errores de parseo. Incomplete no es un fallo: significa "esperar más
// bytes". Malformed indica desincronización y obliga a resincronizar
// saltando el flag encontrado.
var (
	ErrIncomplete = errors.New("frame: cadre incompleto, faltan bytes")
	ErrMalformed  = errors.New("frame: cadre malformado")
)

// JamByte es el valor fuera de banda que el transmisor emite al
// detectar una colisión. Pertenece al alfabeto reservado de la tabla
// de stuffing: dentro del cuerpo de un cadre siempre viaja escapado,
// así que un 0xFF crudo en el cable solo puede ser una señal de jam,
// incluso cuando la corrupción o el propio FCS producen ese valor.
const JamByte byte = 0xFF

// DestAddr es la dirección de destino fija (difusión).
const DestAddr byte = 0x00

// FCSState clasifica el resultado de la verificación FCS de un cadre.
type FCSState int

const (
	// FCSDisabled: el códec se construyó sin FCS.
	FCSDisabled FCSState = iota
	// FCSValid: síndrome cero, datos intactos.
	FCSValid
	// FCSCorrected: error simple corregido en los datos entregados.
	FCSCorrected
	// FCSDoubleError: error doble detectado; los datos se entregan
	// marcados como corruptos, nunca como correctos.
	FCSDoubleError
)

func (s FCSState) String() string {
	switch s {
	case FCSDisabled:
		return "sin FCS"
	case FCSValid:
		return "válido"
	case FCSCorrected:
		return "corregido"
	case FCSDoubleError:
		return "error doble"
	default:
		return fmt.Sprintf("FCSState(%d)", int(s))
	}
}

// Config define los parámetros de cadrado. Los valores por defecto
// reproducen los del laboratorio: N=9, flags '@' y 'a'+N-1, ESC 0x1B.
type Config struct {
	N         int  // DATA_LENGTH = N+1
	FlagStart byte
	FlagEnd   byte
	Esc       byte
	WithFCS   bool
}

// DefaultConfig devuelve la configuración del enunciado: N=9 con el
// flag terminando en 'a'+N-1 = 'i'.
func DefaultConfig() Config {
	n := 9
	return Config{
		N:         n,
		FlagStart: '@',
		FlagEnd:   byte('a' + n - 1),
		Esc:       0x1B,
		WithFCS:   true,
	}
}

// Codec arma y parsea cadres según una Config fija. Es seguro para
// uso concurrente salvo por el hook de corrupción, que pertenece al
// camino de envío de un solo endpoint.
type Codec struct {
	cfg        Config
	table      *stuffing.Table
	dataLength int
	fcsBits    int // r+1, 0 si WithFCS es false
	fcsLength  int // bytes de FCS en el cadre
	corrupt    func([]byte) []byte
}

// NewCodec valida la configuración y precalcula la geometría del FCS.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.N < 1 {
		return nil, fmt.Errorf("N inválido: %d (debe ser >= 1)", cfg.N)
	}
	table, err := stuffing.NewTable(cfg.FlagStart, cfg.FlagEnd, cfg.Esc, JamByte)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		cfg:        cfg,
		table:      table,
		dataLength: cfg.N + 1,
	}
	if cfg.WithFCS {
		r, _ := hamming.ParityLayout(c.dataLength * 8)
		c.fcsBits = r + 1
		c.fcsLength = (c.fcsBits + 7) / 8
	}
	return c, nil
}

// DataLength devuelve el tamaño fijo del campo de datos en bytes.
func (c *Codec) DataLength() int { return c.dataLength }

// FCSLength devuelve el tamaño del campo FCS en bytes (0 sin FCS).
func (c *Codec) FCSLength() int { return c.fcsLength }

// Flag devuelve los dos bytes del flag de inicio de cadre.
func (c *Codec) Flag() []byte { return []byte{c.cfg.FlagStart, c.cfg.FlagEnd} }

// Table expone la tabla de stuffing del códec.
func (c *Codec) Table() *stuffing.Table { return c.table }

// SetCorruptor instala el hook que simula el canal ruidoso alterando
// bits de la región datos+FCS antes del stuffing. nil lo deshabilita.
func (c *Codec) SetCorruptor(fn func([]byte) []byte) { c.corrupt = fn }

// SourceAddr deriva la dirección de origen de la identidad numérica
// del endpoint. Identidades fuera de rango degradan a 0 en lugar de
// fallar el envío.
func SourceAddr(id int) byte {
	if id < 0 || id > 0xFF {
		return 0
	}
	return byte(id)
}

// SplitChunks divide un mensaje en chunks de DATA_LENGTH bytes, en
// orden, rellenando el último con ceros a la derecha. Ningún chunk
// cruza dos cadres.
func (c *Codec) SplitChunks(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(data)+c.dataLength-1)/c.dataLength)
	for i := 0; i < len(data); i += c.dataLength {
		end := i + c.dataLength
		if end > len(data) {
			end = len(data)
		}
		chunk := make([]byte, c.dataLength)
		copy(chunk, data[i:end])
		chunks = append(chunks, chunk)
	}
	return chunks
}

// TrimPadding quita el relleno de ceros por la derecha de un payload
// entregado.
func TrimPadding(payload []byte) []byte {
	end := len(payload)
	for end > 0 && payload[end-1] == 0 {
		end--
	}
	return payload[:end]
}

// FramePreview describe la estructura de un cadre codificado, campo a
// campo, para la vista de cadres de la capa de presentación.
type FramePreview struct {
	Flag       []byte
	SourceAddr byte
	DestAddr   byte
	Body       []byte // datos+FCS ya stuffeados
	EscapedIdx []int  // índices de Body producidos por el stuffing
	FCSOffset  int    // offset en Body donde empieza el FCS stuffeado; -1 sin FCS
}

// EncodeChunk arma un cadre completo para un payload de exactamente
// DATA_LENGTH bytes: calcula el FCS (si está habilitado), aplica el
// hook de corrupción sobre datos+FCS, stuffea la concatenación y
// antepone FLAG‖SA‖DA. Devuelve los bytes listos para transmitir y la
// vista del cadre.
func (c *Codec) EncodeChunk(payload []byte, sourceAddr byte) ([]byte, *FramePreview, error) {
	if len(payload) != c.dataLength {
		return nil, nil, fmt.Errorf("payload de %d bytes, esperado exactamente %d", len(payload), c.dataLength)
	}

	body := make([]byte, 0, c.dataLength+c.fcsLength)
	body = append(body, payload...)
	if c.cfg.WithFCS {
		fcs, err := c.computeFCS(payload)
		if err != nil {
			return nil, nil, err
		}
		body = append(body, fcs...)
	}

	if c.corrupt != nil {
		body = c.corrupt(body)
	}

	stuffed, escaped := c.table.StuffAnnotated(body)

	frame := make([]byte, 0, 4+len(stuffed))
	frame = append(frame, c.cfg.FlagStart, c.cfg.FlagEnd, sourceAddr, DestAddr)
	frame = append(frame, stuffed...)

	preview := &FramePreview{
		Flag:       c.Flag(),
		SourceAddr: sourceAddr,
		DestAddr:   DestAddr,
		Body:       stuffed,
		EscapedIdx: escaped,
		FCSOffset:  -1,
	}
	if c.cfg.WithFCS {
		preview.FCSOffset = c.table.StuffedLen(body[:c.dataLength])
	}
	return frame, preview, nil
}

// ParsedFrame es el resultado de parsear un cadre completo.
type ParsedFrame struct {
	SourceAddr byte
	DestAddr   byte
	Payload    []byte // DATA_LENGTH bytes, ya corregidos si hubo error simple
	FCS        []byte
	State      FCSState
}

// TryParseFrame intenta parsear un cadre a partir de una ventana que
// comienza exactamente en una coincidencia del flag. Devuelve el cadre
// y cuántos bytes de la ventana consumió. ErrIncomplete significa que
// faltan bytes (no es un error); ErrMalformed significa que apareció
// un flag sin escapar dentro del cuerpo y hay que resincronizar.
func (c *Codec) TryParseFrame(window []byte) (*ParsedFrame, int, error) {
	if len(window) < 2 {
		return nil, 0, ErrIncomplete
	}
	if window[0] != c.cfg.FlagStart || window[1] != c.cfg.FlagEnd {
		return nil, 0, fmt.Errorf("%w: la ventana no comienza en un flag", ErrMalformed)
	}
	if len(window) < 4 {
		return nil, 0, ErrIncomplete
	}

	target := c.dataLength + c.fcsLength
	body := make([]byte, 0, target)
	i := 4
	for len(body) < target {
		if i >= len(window) {
			return nil, 0, ErrIncomplete
		}
		b := window[i]

		// Un flag completo dentro del cuerpo delata un cadre troceado
		// (p. ej. por una colisión): el stuffing garantiza que nunca
		// ocurre en un cadre bien formado.
		if b == c.cfg.FlagStart {
			if i+1 >= len(window) {
				return nil, 0, ErrIncomplete
			}
			if window[i+1] == c.cfg.FlagEnd {
				return nil, 0, ErrMalformed
			}
		}

		if b == c.cfg.Esc {
			if i+1 >= len(window) {
				// Podría ser la primera mitad de una pareja escapada
				// que aún no llegó.
				return nil, 0, ErrIncomplete
			}
			if c.table.IsReserved(window[i+1]) {
				body = append(body, window[i+1])
				i += 2
				continue
			}
		}

		body = append(body, b)
		i++
	}

	parsed := &ParsedFrame{
		SourceAddr: window[2],
		DestAddr:   window[3],
		Payload:    body[:c.dataLength],
		State:      FCSDisabled,
	}
	if c.cfg.WithFCS {
		parsed.FCS = body[c.dataLength:]
		corrected, state, err := c.verifyFCS(parsed.Payload, parsed.FCS)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		parsed.Payload = corrected
		parsed.State = state
	}
	return parsed, i, nil
}

// computeFCS codifica los bits del payload con Hamming SEC-DED y
// empaqueta solo los bits de paridad (r Hamming + paridad global) en
// FCS_LENGTH bytes, MSB primero, con relleno de ceros.
func (c *Codec) computeFCS(payload []byte) ([]byte, error) {
	dataBits := hamming.BytesToBits(payload)
	codeword, err := hamming.Encode(dataBits)
	if err != nil {
		return nil, err
	}
	parity, err := hamming.ParityBits(codeword, len(dataBits))
	if err != nil {
		return nil, err
	}
	fcs := hamming.BitsToBytes(parity)
	for len(fcs) < c.fcsLength {
		fcs = append(fcs, 0)
	}
	return fcs[:c.fcsLength], nil
}

// verifyFCS reconstruye el codeword completo a partir de los datos
// recibidos y los bits de paridad del FCS, y lo decodifica para
// detectar y corregir errores.
func (c *Codec) verifyFCS(payload, fcs []byte) ([]byte, FCSState, error) {
	dataBits := hamming.BytesToBits(payload)
	parityBits := hamming.BytesToBits(fcs)[:c.fcsBits]

	codeword, err := hamming.AssembleCodeword(dataBits, parityBits)
	if err != nil {
		return nil, FCSDisabled, err
	}
	decoded, corrected, doubleError, err := hamming.Decode(codeword)
	if err != nil {
		return nil, FCSDisabled, err
	}

	out := hamming.BitsToBytes(decoded)
	switch {
	case doubleError:
		return out, FCSDoubleError, nil
	case corrected:
		return out, FCSCorrected, nil
	default:
		return out, FCSValid, nil
	}
}
