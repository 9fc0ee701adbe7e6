package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopback_EscrituraCruzada(t *testing.T) {
	a, b := Pair(16)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Write([]byte{0x01, 0x02, 0x03}))

	for _, want := range []byte{0x01, 0x02, 0x03} {
		got, ok, err := b.ReadByte(time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	// Y en la otra dirección.
	require.NoError(t, b.Write([]byte{0xAB}))
	got, ok, err := a.ReadByte(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0xAB), got)
}

func TestLoopback_TimeoutSinDatos(t *testing.T) {
	a, b := Pair(4)
	defer a.Close()
	defer b.Close()

	start := time.Now()
	_, ok, err := a.ReadByte(30 * time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestLoopback_CierreDesbloqueaLectura(t *testing.T) {
	a, b := Pair(4)
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		_, _, err := a.ReadByte(5 * time.Second)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("la lectura no se desbloqueó tras cerrar el transporte")
	}
}

func TestLoopback_EscrituraTrasCierre(t *testing.T) {
	a, b := Pair(4)
	defer b.Close()

	require.NoError(t, a.Close())
	assert.False(t, a.IsOpen())
	assert.ErrorIs(t, a.Write([]byte{1}), ErrClosed)
}

func TestLoopback_CierreDelParDesbloqueaEscritura(t *testing.T) {
	a, b := Pair(4)
	defer a.Close()

	// Llenar la cola con el otro extremo sin leer.
	require.NoError(t, a.Write([]byte{1, 2, 3, 4}))

	done := make(chan error, 1)
	go func() {
		done <- a.Write([]byte{5})
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("la escritura no se desbloqueó tras cerrar el otro extremo")
	}
}

func TestLoopback_DrenaPendientesAlCerrar(t *testing.T) {
	a, b := Pair(16)
	defer a.Close()

	require.NoError(t, a.Write([]byte{0x55}))
	require.NoError(t, b.Close())

	// El byte que ya estaba en tránsito sigue disponible.
	got, ok, err := b.ReadByte(100 * time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0x55), got)
}
