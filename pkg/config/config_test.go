package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contenido string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contenido), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 9, cfg.Framing.N)
	assert.True(t, cfg.Framing.WithFCS)
	assert.Equal(t, 0.40, cfg.Noise.PSingle)
	assert.Equal(t, 0.25, cfg.Noise.PDouble)
	assert.Equal(t, 16, cfg.CSMA.MaxRetries)
	assert.Equal(t, 5*time.Millisecond, cfg.CSMA.SlotTime)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_SuperponeSoloLoDefinido(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[framing]
n = 4

[csma]
slot_time_ms = 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Framing.N)
	assert.Equal(t, 2*time.Millisecond, cfg.CSMA.SlotTime)
	assert.Equal(t, "debug", cfg.LogLevel)
	// lo no definido conserva el default
	assert.True(t, cfg.Framing.WithFCS)
	assert.Equal(t, 16, cfg.CSMA.MaxRetries)
	assert.Equal(t, 0.40, cfg.Noise.PSingle)
}

func TestLoad_ArchivoInexistente(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "no-existe.toml"))
	assert.Error(t, err)
}

func TestLoad_Invalida(t *testing.T) {
	casos := []struct {
		nombre    string
		contenido string
	}{
		{"n fuera de rango", "[framing]\nn = 27\n"},
		{"probabilidades exceden 1", "[noise]\np_single = 0.8\np_double = 0.5\n"},
		{"reintentos cero", "[csma]\nmax_retries = 0\n"},
		{"endpoints iguales", "[endpoints]\nfirst_id = 3\nsecond_id = 3\n"},
	}

	for _, c := range casos {
		t.Run(c.nombre, func(t *testing.T) {
			_, err := Load(writeConfig(t, c.contenido))
			assert.Error(t, err)
		})
	}
}

func TestFrameConfig_SigueLaReglaDelFlag(t *testing.T) {
	cfg := Default()
	cfg.Framing.N = 4

	fc := cfg.FrameConfig()
	assert.Equal(t, 4, fc.N)
	assert.Equal(t, byte('d'), fc.FlagEnd)
	assert.Equal(t, byte('@'), fc.FlagStart)
}

func TestSensor_RecibeLasProbabilidadesConfiguradas(t *testing.T) {
	path := writeConfig(t, `
[csma]
busy_probability = 0.10
collision_probability = 0.05
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	sensor, err := cfg.Sensor()
	require.NoError(t, err)

	busy, collision := sensor.Probabilities()
	assert.Equal(t, 0.10, busy)
	assert.Equal(t, 0.05, collision)
}

func TestSensor_DefaultsDelEnunciado(t *testing.T) {
	sensor, err := Default().Sensor()
	require.NoError(t, err)

	busy, collision := sensor.Probabilities()
	assert.Equal(t, 0.70, busy)
	assert.Equal(t, 0.30, collision)
}

func TestCorruptor(t *testing.T) {
	cfg := Default()
	cfg.Noise.Seed = 42

	corr, err := cfg.Corruptor()
	require.NoError(t, err)
	require.NotNil(t, corr)

	cfg.Framing.Corrupt = false
	corr, err = cfg.Corruptor()
	require.NoError(t, err)
	assert.Nil(t, corr)
}
