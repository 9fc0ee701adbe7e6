package link

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/csmacd"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/frame"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/transport"
)

type deliveries struct {
	mu         sync.Mutex
	texts      []string
	states     []frame.FCSState
	collisions int
}

func (d *deliveries) events() Events {
	return Events{
		OnDecodedText: func(_ int, text string, state frame.FCSState) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.texts = append(d.texts, text)
			d.states = append(d.states, state)
		},
		OnCollision: func(int) {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.collisions++
		},
	}
}

func (d *deliveries) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.texts)
}

func (d *deliveries) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

// cleanSensor nunca ve el canal ocupado ni colisiones.
type cleanSensor struct{}

func (cleanSensor) ChannelBusy() bool       { return false }
func (cleanSensor) CollisionDetected() bool { return false }

func testOptions() Options {
	params := csmacd.DefaultParams()
	params.InterByteDelay = 0
	params.SlotTime = time.Millisecond
	return Options{
		Sensor:      cleanSensor{},
		Params:      params,
		ReadTimeout: 20 * time.Millisecond,
		Logger:      zerolog.Nop(),
	}
}

func TestEndpoints_MensajeDeIdaYVuelta(t *testing.T) {
	a, b := transport.Pair(4096)
	codec, err := frame.NewCodec(frame.DefaultConfig())
	require.NoError(t, err)

	rx1, rx2 := &deliveries{}, &deliveries{}
	e1 := NewEndpoint(1, a, a, codec, rx1.events(), testOptions())
	e2 := NewEndpoint(2, b, b, codec, rx2.events(), testOptions())

	ctx := context.Background()
	e1.Start(ctx)
	e2.Start(ctx)
	defer e1.Stop()
	defer e2.Stop()

	// 1 → 2: dos chunks ("Hola mundo" + "!").
	report, err := e1.Send(ctx, "Hola mundo!")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Frames)
	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, 0, report.Failed)

	require.Eventually(t, func() bool { return rx2.count() == 2 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Hola mundo", "!"}, rx2.snapshot())

	// 2 → 1 en paralelo lógico: los endpoints no comparten estado.
	_, err = e2.Send(ctx, "eco")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rx1.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"eco"}, rx1.snapshot())
	rx1.mu.Lock()
	assert.Equal(t, frame.FCSValid, rx1.states[0])
	rx1.mu.Unlock()
}

func TestEndpoints_ConCSMACD(t *testing.T) {
	a, b := transport.Pair(4096)
	codec, err := frame.NewCodec(frame.DefaultConfig())
	require.NoError(t, err)

	rx2 := &deliveries{}
	opts := testOptions()
	opts.UseCSMA = true
	e1 := NewEndpoint(1, a, a, codec, Events{}, opts)
	e2 := NewEndpoint(2, b, b, codec, rx2.events(), testOptions())

	ctx := context.Background()
	e2.Start(ctx)
	defer e2.Stop()

	report, err := e1.Send(ctx, "via CSMA")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)

	require.Eventually(t, func() bool { return rx2.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"via CSMA"}, rx2.snapshot())
}

func TestEndpoints_JamNotificaColision(t *testing.T) {
	a, b := transport.Pair(64)
	codec, err := frame.NewCodec(frame.DefaultConfig())
	require.NoError(t, err)

	rx2 := &deliveries{}
	e2 := NewEndpoint(2, b, b, codec, rx2.events(), testOptions())
	e2.Start(context.Background())
	defer e2.Stop()

	// Cuatro bytes de jam directos al cable.
	require.NoError(t, a.Write([]byte{frame.JamByte, frame.JamByte, frame.JamByte, frame.JamByte}))

	require.Eventually(t, func() bool {
		rx2.mu.Lock()
		defer rx2.mu.Unlock()
		return rx2.collisions == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, rx2.count())
}

func TestEndpoints_CorrupcionIgualAlJamNoPierdeElCadre(t *testing.T) {
	a, b := transport.Pair(4096)
	codec, err := frame.NewCodec(frame.DefaultConfig())
	require.NoError(t, err)

	// Dos flips en el mismo byte convierten '?' (0x3F) en 0xFF: el
	// cuerpo lleva el mismo valor que la señal de jam. El receptor debe
	// entregar el cadre marcado corrupto, no comérselo como colisión.
	codec.SetCorruptor(func(body []byte) []byte {
		out := append([]byte(nil), body...)
		out[0] ^= 0xC0
		return out
	})

	rx2 := &deliveries{}
	e1 := NewEndpoint(1, a, a, codec, Events{}, testOptions())
	e2 := NewEndpoint(2, b, b, codec, rx2.events(), testOptions())

	ctx := context.Background()
	e2.Start(ctx)
	defer e2.Stop()

	report, err := e1.Send(ctx, "?23456789")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Delivered)

	require.Eventually(t, func() bool { return rx2.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	rx2.mu.Lock()
	defer rx2.mu.Unlock()
	assert.Equal(t, frame.FCSDoubleError, rx2.states[0])
	assert.Zero(t, rx2.collisions, "el 0xFF escapado no debe contarse como jam")
}

func TestEndpoint_FalloDeEnvioNoAbortaLosSiguientes(t *testing.T) {
	a, _ := transport.Pair(4096)
	codec, err := frame.NewCodec(frame.DefaultConfig())
	require.NoError(t, err)

	// Sensor que colisiona siempre: todos los cadres agotan reintentos.
	opts := testOptions()
	opts.UseCSMA = true
	opts.Sensor = alwaysCollide{}
	opts.Params.SlotTime = 0
	e1 := NewEndpoint(1, a, a, codec, Events{}, opts)

	report, err := e1.Send(context.Background(), "0123456789AB") // dos cadres
	require.NoError(t, err, "agotar reintentos no es un error del endpoint")
	assert.Equal(t, 2, report.Frames)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 0, report.Delivered)
	assert.Equal(t, 2*csmacd.DefaultMaxRetries, report.Collisions)
}

type alwaysCollide struct{}

func (alwaysCollide) ChannelBusy() bool       { return false }
func (alwaysCollide) CollisionDetected() bool { return true }

func TestEndpoint_StopSaleDentroDeUnTimeout(t *testing.T) {
	a, b := transport.Pair(16)
	defer a.Close()
	defer b.Close()
	codec, err := frame.NewCodec(frame.DefaultConfig())
	require.NoError(t, err)

	opts := testOptions()
	opts.ReadTimeout = 50 * time.Millisecond
	e := NewEndpoint(1, a, a, codec, Events{}, opts)
	e.Start(context.Background())

	start := time.Now()
	e.Stop()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestEndpoint_MensajeVacio(t *testing.T) {
	a, _ := transport.Pair(16)
	codec, err := frame.NewCodec(frame.DefaultConfig())
	require.NoError(t, err)
	e := NewEndpoint(1, a, a, codec, Events{}, testOptions())

	_, err = e.Send(context.Background(), "")
	assert.Error(t, err)
}
