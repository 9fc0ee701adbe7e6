package csmacd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/transport"
)

// Transmitter implementa el acceso al medio CSMA/CD sobre un
// transporte: sensa el canal, transmite byte a byte vigilando
// colisiones, emite la señal de jam al detectar una y reintenta tras
// un backoff exponencial binario truncado. Máquina de estados por
// cadre:
//
//	IDLE → SENSING → {ocupado→SENSING | libre→TRANSMITTING}
//	TRANSMITTING → {colisión→JAM→BACKOFF→SENSING | fin→IDLE}
//
// y FAILED terminal al agotar los reintentos del cadre.

// Parámetros por defecto del enunciado.
const (
	DefaultMaxRetries    = 16
	DefaultMaxBackoffExp = 10   // CWmax = 2^10 - 1 = 1023
	DefaultCWMin         = 7    // 2^3 - 1
	DefaultCWMax         = 1023 // 2^10 - 1

	DefaultSlotTime     = 5 * time.Millisecond
	DefaultBusyPollWait = 10 * time.Millisecond
	// Pausa entre bytes para no saturar el transporte, como en el
	// transmisor original.
	DefaultInterByteDelay = time.Millisecond

	// JamByte es el patrón de jam; se emite JamLength veces para
	// asegurar su detección en el receptor.
	JamByte   byte = 0xFF
	JamLength      = 4
)

// ErrRetriesExhausted señala que el cadre agotó su presupuesto de
// reintentos. Es un resultado de envío fallido, no un fallo fatal del
// endpoint.
var ErrRetriesExhausted = errors.New("csmacd: reintentos agotados")

// Params agrupa los parámetros de contención y temporización.
type Params struct {
	MaxRetries     int
	MaxBackoffExp  int
	CWMin          int
	CWMax          int
	SlotTime       time.Duration
	BusyPollWait   time.Duration
	InterByteDelay time.Duration
}

// DefaultParams devuelve los parámetros del enunciado.
func DefaultParams() Params {
	return Params{
		MaxRetries:     DefaultMaxRetries,
		MaxBackoffExp:  DefaultMaxBackoffExp,
		CWMin:          DefaultCWMin,
		CWMax:          DefaultCWMax,
		SlotTime:       DefaultSlotTime,
		BusyPollWait:   DefaultBusyPollWait,
		InterByteDelay: DefaultInterByteDelay,
	}
}

// Result resume una transmisión terminada.
type Result struct {
	Success    bool
	Attempts   int // intentos de transmisión consumidos por colisiones
	Collisions int
	Backoff    time.Duration // tiempo total dormido en backoff
}

// Transmitter es propiedad exclusiva del camino de envío de un
// endpoint; el estado de contención se reinicia en cada cadre.
type Transmitter struct {
	port   transport.Transport
	sensor ChannelSensor
	params Params
	rng    *rand.Rand
	mu     sync.Mutex
	log    zerolog.Logger
}

// NewTransmitter crea un transmisor con los parámetros dados. Si
// sensor es nil se usa la simulación por defecto.
func NewTransmitter(port transport.Transport, sensor ChannelSensor, params Params, log zerolog.Logger) *Transmitter {
	if sensor == nil {
		sensor = NewSimulatedSensor()
	}
	return &Transmitter{
		port:   port,
		sensor: sensor,
		params: params,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    log,
	}
}

// SeedBackoff fija la semilla del generador de slots de backoff
// (para tests reproducibles).
func (t *Transmitter) SeedBackoff(seed int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rng = rand.New(rand.NewSource(seed))
}

// BackoffDelay calcula la demora aleatoria tras la colisión número
// collisionCount con la fórmula estándar del backoff exponencial
// binario truncado: k = min(count, MaxBackoffExp),
// cw = clamp(2^k - 1, CWMin, CWMax), slots uniformes en [0, cw].
func (t *Transmitter) BackoffDelay(collisionCount int) time.Duration {
	k := collisionCount
	if k > t.params.MaxBackoffExp {
		k = t.params.MaxBackoffExp
	}
	cw := (1 << k) - 1
	if cw > t.params.CWMax {
		cw = t.params.CWMax
	}
	if cw < t.params.CWMin {
		cw = t.params.CWMin
	}

	t.mu.Lock()
	slots := t.rng.Intn(cw + 1)
	t.mu.Unlock()
	return time.Duration(slots) * t.params.SlotTime
}

// Transmit envía un cadre completo aplicando CSMA/CD. El canal
// ocupado solo consume tiempo de espera; las colisiones consumen
// intentos. Tras MaxRetries colisiones devuelve ErrRetriesExhausted.
// ctx cancela con prontitud tanto las esperas de sensado como los
// sueños de backoff.
func (t *Transmitter) Transmit(ctx context.Context, frame []byte) (*Result, error) {
	result := &Result{}
	collisionCount := 0

	for result.Attempts < t.params.MaxRetries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		// Paso 1: sensado de portadora.
		if t.sensor.ChannelBusy() {
			if err := sleepCtx(ctx, t.params.BusyPollWait); err != nil {
				return result, err
			}
			continue
		}

		// Paso 2: canal libre; transmitir byte a byte vigilando
		// colisiones.
		collided, err := t.transmitBytes(ctx, frame)
		if err != nil {
			return result, err
		}
		if !collided {
			result.Success = true
			t.log.Debug().
				Int("bytes", len(frame)).
				Int("colisiones", result.Collisions).
				Msg("cadre transmitido")
			return result, nil
		}

		// Paso 3: colisión. Jam ya emitido; contabilizar y retroceder.
		collisionCount++
		result.Collisions++
		result.Attempts++

		delay := t.BackoffDelay(collisionCount)
		result.Backoff += delay
		t.log.Debug().
			Int("colision", collisionCount).
			Dur("backoff", delay).
			Msg("colisión detectada, aplicando backoff")
		if err := sleepCtx(ctx, delay); err != nil {
			return result, err
		}
	}

	t.log.Warn().
		Int("intentos", result.Attempts).
		Msg("transmisión abandonada: reintentos agotados")
	return result, fmt.Errorf("%w tras %d intentos", ErrRetriesExhausted, result.Attempts)
}

// transmitBytes escribe el cadre byte a byte. Devuelve collided=true
// si una colisión interrumpió la transmisión (con el jam ya emitido);
// en ese caso el cadre completo debe reiniciarse.
func (t *Transmitter) transmitBytes(ctx context.Context, frame []byte) (bool, error) {
	for i, b := range frame {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if t.sensor.CollisionDetected() {
			if err := t.sendJam(); err != nil {
				return false, err
			}
			return true, nil
		}
		if err := t.port.Write([]byte{b}); err != nil {
			return false, fmt.Errorf("escribiendo byte %d: %w", i, err)
		}
		if t.params.InterByteDelay > 0 {
			if err := sleepCtx(ctx, t.params.InterByteDelay); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// sendJam emite el patrón de jam para que los pares reconozcan la
// colisión.
func (t *Transmitter) sendJam() error {
	jam := make([]byte, JamLength)
	for i := range jam {
		jam[i] = JamByte
	}
	if err := t.port.Write(jam); err != nil {
		return fmt.Errorf("emitiendo jam: %w", err)
	}
	return nil
}

// sleepCtx duerme d o hasta que ctx se cancele, lo que ocurra antes.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
