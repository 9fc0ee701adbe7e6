package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/csmacd"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/frame"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/transport"
)

// Events agrupa los callbacks hacia la capa de presentación. El
// núcleo solo los consume; nunca reciben llamadas de vuelta. Cualquier
// campo nil se ignora.
type Events struct {
	// OnDecodedText entrega el texto de un cadre recibido junto con el
	// estado de su FCS. Con FCSDoubleError el texto se entrega igual,
	// marcado como corrupto, nunca como correcto.
	OnDecodedText func(endpointID int, text string, state frame.FCSState)
	// OnFramePreview publica la vista estructurada de cada cadre
	// emitido.
	OnFramePreview func(endpointID int, preview *frame.FramePreview)
	// OnCollision notifica la llegada de una señal de jam.
	OnCollision func(endpointID int)
}

// Options configura un endpoint.
type Options struct {
	// UseCSMA activa el planificador CSMA/CD en el camino de envío;
	// sin él los cadres se escriben directamente al transporte.
	UseCSMA bool
	// Sensor para el CSMA/CD; nil usa la simulación por defecto.
	Sensor csmacd.ChannelSensor
	// Params de contención; el valor cero usa DefaultParams.
	Params csmacd.Params
	// ReadTimeout acota cada lectura bloqueante (por defecto 100ms);
	// también acota cuánto tarda en salir la tarea de recepción al
	// cancelar.
	ReadTimeout time.Duration
	Logger      zerolog.Logger
}

// Endpoint es una estación lógica del enlace: una identidad, un par
// de transportes (envío y recepción), su buffer de reensamblado y su
// estado de contención. Las dos "instancias" del laboratorio original
// son dos valores de este tipo; no comparten ningún estado.
type Endpoint struct {
	id    int
	addr  byte
	codec *frame.Codec

	tx transport.Transport
	rx transport.Transport

	transmitter *csmacd.Transmitter
	reasm       *Reassembler
	events      Events
	log         zerolog.Logger

	readTimeout time.Duration

	mu        sync.Mutex
	sentBytes int
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewEndpoint arma un endpoint sobre los transportes dados. La
// dirección de origen se deriva de la identidad numérica; una
// identidad fuera de rango degrada a 0.
func NewEndpoint(id int, tx, rx transport.Transport, codec *frame.Codec, events Events, opts Options) *Endpoint {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	if opts.Params == (csmacd.Params{}) {
		opts.Params = csmacd.DefaultParams()
	}

	e := &Endpoint{
		id:          id,
		addr:        frame.SourceAddr(id),
		codec:       codec,
		tx:          tx,
		rx:          rx,
		events:      events,
		log:         opts.Logger.With().Int("endpoint", id).Logger(),
		readTimeout: opts.ReadTimeout,
	}
	if opts.UseCSMA {
		e.transmitter = csmacd.NewTransmitter(tx, opts.Sensor, opts.Params, e.log)
	}
	e.reasm = NewReassembler(codec, e.deliverFrame, func(discarded int) {
		e.log.Warn().Int("descartados", discarded).Msg("cadre malformado, resincronizando")
	})
	return e
}

// Addr devuelve la dirección de origen derivada de la identidad.
func (e *Endpoint) Addr() byte { return e.addr }

// SentBytes devuelve el total de bytes escritos al transporte.
func (e *Endpoint) SentBytes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sentBytes
}

// Start lanza la tarea de recepción: lecturas bloqueantes byte a byte
// que alimentan el reensamblador. Esa tarea es la única que toca el
// buffer de recepción.
func (e *Endpoint) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.receiveLoop(ctx)
	e.log.Info().Msg("tarea de recepción iniciada")
}

// Stop cancela las tareas del endpoint y espera a que la recepción
// termine (a lo sumo un timeout de lectura).
func (e *Endpoint) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.log.Info().Msg("endpoint detenido")
}

func (e *Endpoint) receiveLoop(ctx context.Context) {
	defer e.wg.Done()
	esc := e.codec.Table().Esc
	escaped := false // el byte anterior abrió una pareja de escape
	for {
		if ctx.Err() != nil {
			return
		}
		b, ok, err := e.rx.ReadByte(e.readTimeout)
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) && ctx.Err() == nil {
				e.log.Error().Err(err).Msg("error de E/S en la recepción")
			}
			return
		}
		if !ok {
			continue // timeout: volver a comprobar la cancelación
		}
		if b == frame.JamByte && !escaped {
			// Señal de jam: notificación de colisión, no datos. Un
			// 0xFF dentro de un cuerpo viaja siempre como ESC‖0xFF,
			// así que un jam crudo es inequívoco.
			e.log.Debug().Msg("señal de jam recibida")
			if e.events.OnCollision != nil {
				e.events.OnCollision(e.id)
			}
			continue
		}
		escaped = b == esc && !escaped
		e.reasm.Push([]byte{b})
	}
}

func (e *Endpoint) deliverFrame(parsed *frame.ParsedFrame) {
	text := string(frame.TrimPadding(parsed.Payload))
	switch parsed.State {
	case frame.FCSDoubleError:
		e.log.Warn().
			Int("origen", int(parsed.SourceAddr)).
			Msg("error doble detectado: cadre entregado marcado como corrupto")
	case frame.FCSCorrected:
		e.log.Info().
			Int("origen", int(parsed.SourceAddr)).
			Msg("error simple corregido en el cadre")
	default:
		e.log.Debug().
			Int("origen", int(parsed.SourceAddr)).
			Int("bytes", len(parsed.Payload)).
			Msg("cadre recibido")
	}
	if e.events.OnDecodedText != nil {
		e.events.OnDecodedText(e.id, text, parsed.State)
	}
}

// SendReport resume el envío de un mensaje completo.
type SendReport struct {
	Frames     int // cadres emitidos (uno por chunk)
	Delivered  int
	Failed     int // cadres que agotaron los reintentos CSMA/CD
	Collisions int
	BytesSent  int
}

// Send trocea el texto en chunks de tamaño fijo y transmite un cadre
// por chunk, en orden FIFO. Un cadre que agota sus reintentos se
// reporta como fallido y no aborta los siguientes; un error de E/S
// del transporte sí corta el envío y se propaga al llamador.
func (e *Endpoint) Send(ctx context.Context, text string) (*SendReport, error) {
	if text == "" {
		return nil, fmt.Errorf("el mensaje no puede estar vacío")
	}

	report := &SendReport{}
	for _, chunk := range e.codec.SplitChunks([]byte(text)) {
		frameBytes, preview, err := e.codec.EncodeChunk(chunk, e.addr)
		if err != nil {
			return report, fmt.Errorf("armando cadre: %w", err)
		}
		if e.events.OnFramePreview != nil {
			e.events.OnFramePreview(e.id, preview)
		}
		report.Frames++

		if e.transmitter != nil {
			result, err := e.transmitter.Transmit(ctx, frameBytes)
			if result != nil {
				report.Collisions += result.Collisions
			}
			switch {
			case err == nil:
				report.Delivered++
				report.BytesSent += len(frameBytes)
			case errors.Is(err, csmacd.ErrRetriesExhausted):
				report.Failed++
				e.log.Warn().Int("cadre", report.Frames).Msg("cadre descartado tras agotar reintentos")
			default:
				return report, err
			}
		} else {
			if err := e.tx.Write(frameBytes); err != nil {
				return report, fmt.Errorf("escribiendo cadre: %w", err)
			}
			report.Delivered++
			report.BytesSent += len(frameBytes)
		}
	}

	e.mu.Lock()
	e.sentBytes += report.BytesSent
	e.mu.Unlock()

	e.log.Info().
		Int("cadres", report.Frames).
		Int("entregados", report.Delivered).
		Int("fallidos", report.Failed).
		Msg("mensaje enviado")
	return report, nil
}
