package csmacd

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/transport"
)

// fixedSensor es un ChannelSensor determinista para tests.
type fixedSensor struct {
	busy      atomic.Bool
	collision atomic.Bool
}

func newFixedSensor(busy, collision bool) *fixedSensor {
	s := &fixedSensor{}
	s.busy.Store(busy)
	s.collision.Store(collision)
	return s
}

func (s *fixedSensor) ChannelBusy() bool       { return s.busy.Load() }
func (s *fixedSensor) CollisionDetected() bool { return s.collision.Load() }

// countingSensor colisiona en las primeras n evaluaciones y luego
// deja el canal limpio.
type countingSensor struct {
	collideFirst int
	calls        int
}

func (s *countingSensor) ChannelBusy() bool { return false }
func (s *countingSensor) CollisionDetected() bool {
	s.calls++
	return s.calls <= s.collideFirst
}

func fastParams() Params {
	p := DefaultParams()
	p.SlotTime = 0
	p.BusyPollWait = 0
	p.InterByteDelay = 0
	return p
}

func newTestTransmitter(sensor ChannelSensor, params Params) (*Transmitter, *transport.Loopback) {
	tx, rx := transport.Pair(4096)
	return NewTransmitter(tx, sensor, params, zerolog.Nop()), rx
}

func drain(rx *transport.Loopback) []byte {
	var out []byte
	for {
		b, ok, err := rx.ReadByte(10 * time.Millisecond)
		if err != nil || !ok {
			return out
		}
		out = append(out, b)
	}
}

func TestTransmit_CanalLimpio(t *testing.T) {
	tr, rx := newTestTransmitter(newFixedSensor(false, false), fastParams())
	frame := []byte{'@', 'i', 1, 0, 'H', 'o', 'l', 'a'}

	result, err := tr.Transmit(context.Background(), frame)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Attempts)
	assert.Equal(t, 0, result.Collisions)
	assert.Equal(t, frame, drain(rx))
}

func TestTransmit_TodoColisiones_FallaTras16Intentos(t *testing.T) {
	tr, rx := newTestTransmitter(newFixedSensor(false, true), fastParams())

	result, err := tr.Transmit(context.Background(), []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.False(t, result.Success)
	// Exactamente MAX_RETRIES intentos, nunca más.
	assert.Equal(t, DefaultMaxRetries, result.Attempts)
	assert.Equal(t, DefaultMaxRetries, result.Collisions)

	// Cada intento emitió el patrón de jam en lugar de datos.
	got := drain(rx)
	require.Len(t, got, DefaultMaxRetries*JamLength)
	for i, b := range got {
		require.Equal(t, JamByte, b, "byte %d", i)
	}
}

func TestTransmit_ColisionesLuegoExito(t *testing.T) {
	// Colisiona en las tres primeras evaluaciones (tres intentos) y
	// luego transmite limpio.
	sensor := &countingSensor{collideFirst: 3}
	tr, rx := newTestTransmitter(sensor, fastParams())

	frame := []byte{9, 8, 7}
	result, err := tr.Transmit(context.Background(), frame)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Collisions)
	assert.Equal(t, 3, result.Attempts)

	// Tres jams y después el cadre completo, reiniciado desde el
	// primer byte.
	got := drain(rx)
	require.Len(t, got, 3*JamLength+len(frame))
	assert.Equal(t, frame, got[3*JamLength:])
}

func TestTransmit_CanalOcupadoNoConsumeIntentos(t *testing.T) {
	sensor := newFixedSensor(true, false)
	params := fastParams()
	params.BusyPollWait = time.Millisecond
	tr, rx := newTestTransmitter(sensor, params)

	go func() {
		time.Sleep(20 * time.Millisecond)
		sensor.busy.Store(false)
	}()

	result, err := tr.Transmit(context.Background(), []byte{0x42})
	require.NoError(t, err)
	assert.True(t, result.Success)
	// La espera por canal ocupado no cuenta como reintento.
	assert.Equal(t, 0, result.Attempts)
	assert.Equal(t, []byte{0x42}, drain(rx))
}

func TestTransmit_CancelacionDuranteBackoff(t *testing.T) {
	params := fastParams()
	params.SlotTime = 50 * time.Millisecond // backoff real para poder cancelar dentro
	tr, _ := newTestTransmitter(newFixedSensor(false, true), params)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := tr.Transmit(ctx, []byte{1, 2, 3})
	assert.ErrorIs(t, err, context.Canceled)
	// Debe abortar pronto, no esperar los 16 backoffs completos.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTransmit_CancelacionDuranteSensado(t *testing.T) {
	params := fastParams()
	params.BusyPollWait = 20 * time.Millisecond
	tr, _ := newTestTransmitter(newFixedSensor(true, false), params)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Transmit(ctx, []byte{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffDelay_DentroDeLaVentana(t *testing.T) {
	tr, _ := newTestTransmitter(newFixedSensor(false, false), DefaultParams())
	tr.SeedBackoff(123)

	for k := 0; k <= 20; k++ {
		for trial := 0; trial < 50; trial++ {
			d := tr.BackoffDelay(k)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, time.Duration(DefaultCWMax)*DefaultSlotTime,
				"k=%d fuera de la ventana máxima", k)
		}
	}
}

func TestBackoffDelay_EsperanzaNoDecreciente(t *testing.T) {
	tr, _ := newTestTransmitter(newFixedSensor(false, false), DefaultParams())
	tr.SeedBackoff(7)

	const samples = 4000
	mean := func(k int) float64 {
		var sum time.Duration
		for i := 0; i < samples; i++ {
			sum += tr.BackoffDelay(k)
		}
		return float64(sum) / samples
	}

	// La ventana crece con k hasta MaxBackoffExp.
	m3, m6, m10 := mean(3), mean(6), mean(10)
	assert.Less(t, m3, m6)
	assert.Less(t, m6, m10)

	// Truncamiento: más allá de MaxBackoffExp la ventana no crece.
	m15 := mean(15)
	assert.InEpsilon(t, m10, m15, 0.15)
}

func TestSimulatedSensor_Frecuencias(t *testing.T) {
	s := NewSimulatedSensorWithSeed(42)

	busy, collisions := 0, 0
	const total = 5000
	for i := 0; i < total; i++ {
		if s.ChannelBusy() {
			busy++
		}
		if s.CollisionDetected() {
			collisions++
		}
	}
	assert.InDelta(t, DefaultBusyProbability, float64(busy)/total, 0.05)
	assert.InDelta(t, DefaultCollisionProbability, float64(collisions)/total, 0.05)
}
