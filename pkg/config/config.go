package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/csmacd"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/frame"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/noise"
)

// Config reúne los parámetros de la simulación completa: geometría de
// cadres, canal con ruido y contención CSMA/CD.
type Config struct {
	Framing   Framing
	Noise     Noise
	CSMA      CSMA
	Endpoints Endpoints
	LogLevel  string
}

// Framing controla la capa de enlace.
type Framing struct {
	N       int // payload útil por cadre es N+1 bytes
	WithFCS bool
	Corrupt bool // activar la inyección de corrupción en el emisor
}

// Noise controla la corrupción simulada del canal.
type Noise struct {
	PSingle float64
	PDouble float64
	Seed    int64 // 0 deriva la semilla del reloj
}

// CSMA controla la contención por el canal.
type CSMA struct {
	Enabled              bool
	MaxRetries           int
	SlotTime             time.Duration
	BusyPollWait         time.Duration
	InterByteDelay       time.Duration
	BusyProbability      float64
	CollisionProbability float64
}

// Endpoints describe los dos extremos de la simulación.
type Endpoints struct {
	FirstID  int
	SecondID int
}

// Default devuelve la configuración de laboratorio.
func Default() Config {
	return Config{
		Framing: Framing{N: 9, WithFCS: true, Corrupt: true},
		Noise: Noise{
			PSingle: noise.DefaultPSingle,
			PDouble: noise.DefaultPDouble,
		},
		CSMA: CSMA{
			Enabled:              true,
			MaxRetries:           csmacd.DefaultMaxRetries,
			SlotTime:             csmacd.DefaultSlotTime,
			BusyPollWait:         csmacd.DefaultBusyPollWait,
			InterByteDelay:       csmacd.DefaultInterByteDelay,
			BusyProbability:      csmacd.DefaultBusyProbability,
			CollisionProbability: csmacd.DefaultCollisionProbability,
		},
		Endpoints: Endpoints{FirstID: 1, SecondID: 2},
		LogLevel:  "info",
	}
}

type fileConfig struct {
	Framing struct {
		N       int  `toml:"n"`
		WithFCS bool `toml:"with_fcs"`
		Corrupt bool `toml:"corrupt"`
	} `toml:"framing"`
	Noise struct {
		PSingle float64 `toml:"p_single"`
		PDouble float64 `toml:"p_double"`
		Seed    int64   `toml:"seed"`
	} `toml:"noise"`
	CSMA struct {
		Enabled              bool    `toml:"enabled"`
		MaxRetries           int     `toml:"max_retries"`
		SlotTimeMS           int64   `toml:"slot_time_ms"`
		BusyPollMS           int64   `toml:"busy_poll_ms"`
		InterByteMS          int64   `toml:"inter_byte_ms"`
		BusyProbability      float64 `toml:"busy_probability"`
		CollisionProbability float64 `toml:"collision_probability"`
	} `toml:"csma"`
	Endpoints struct {
		FirstID  int `toml:"first_id"`
		SecondID int `toml:"second_id"`
	} `toml:"endpoints"`
	LogLevel string `toml:"log_level"`
}

// Load lee un TOML y lo superpone sobre los valores de laboratorio:
// solo las claves presentes en el archivo reemplazan los defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("cargando configuración: %w", err)
	}

	if meta.IsDefined("framing", "n") {
		cfg.Framing.N = raw.Framing.N
	}
	if meta.IsDefined("framing", "with_fcs") {
		cfg.Framing.WithFCS = raw.Framing.WithFCS
	}
	if meta.IsDefined("framing", "corrupt") {
		cfg.Framing.Corrupt = raw.Framing.Corrupt
	}

	if meta.IsDefined("noise", "p_single") {
		cfg.Noise.PSingle = raw.Noise.PSingle
	}
	if meta.IsDefined("noise", "p_double") {
		cfg.Noise.PDouble = raw.Noise.PDouble
	}
	if meta.IsDefined("noise", "seed") {
		cfg.Noise.Seed = raw.Noise.Seed
	}

	if meta.IsDefined("csma", "enabled") {
		cfg.CSMA.Enabled = raw.CSMA.Enabled
	}
	if meta.IsDefined("csma", "max_retries") {
		cfg.CSMA.MaxRetries = raw.CSMA.MaxRetries
	}
	if meta.IsDefined("csma", "slot_time_ms") {
		cfg.CSMA.SlotTime = time.Duration(raw.CSMA.SlotTimeMS) * time.Millisecond
	}
	if meta.IsDefined("csma", "busy_poll_ms") {
		cfg.CSMA.BusyPollWait = time.Duration(raw.CSMA.BusyPollMS) * time.Millisecond
	}
	if meta.IsDefined("csma", "inter_byte_ms") {
		cfg.CSMA.InterByteDelay = time.Duration(raw.CSMA.InterByteMS) * time.Millisecond
	}
	if meta.IsDefined("csma", "busy_probability") {
		cfg.CSMA.BusyProbability = raw.CSMA.BusyProbability
	}
	if meta.IsDefined("csma", "collision_probability") {
		cfg.CSMA.CollisionProbability = raw.CSMA.CollisionProbability
	}

	if meta.IsDefined("endpoints", "first_id") {
		cfg.Endpoints.FirstID = raw.Endpoints.FirstID
	}
	if meta.IsDefined("endpoints", "second_id") {
		cfg.Endpoints.SecondID = raw.Endpoints.SecondID
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rechaza combinaciones que la simulación no puede ejecutar.
func (c Config) Validate() error {
	if c.Framing.N < 1 || c.Framing.N > 26 {
		return fmt.Errorf("framing.n fuera de [1,26]: %d (el flag final es 'a'+n-1)", c.Framing.N)
	}
	if c.Noise.PSingle < 0 || c.Noise.PDouble < 0 || c.Noise.PSingle+c.Noise.PDouble > 1 {
		return fmt.Errorf("probabilidades de ruido inválidas: p_single=%.2f p_double=%.2f",
			c.Noise.PSingle, c.Noise.PDouble)
	}
	if c.CSMA.MaxRetries < 1 {
		return fmt.Errorf("csma.max_retries debe ser al menos 1, recibido %d", c.CSMA.MaxRetries)
	}
	if c.CSMA.BusyProbability < 0 || c.CSMA.BusyProbability > 1 {
		return fmt.Errorf("csma.busy_probability fuera de [0,1]: %.2f", c.CSMA.BusyProbability)
	}
	if c.CSMA.CollisionProbability < 0 || c.CSMA.CollisionProbability > 1 {
		return fmt.Errorf("csma.collision_probability fuera de [0,1]: %.2f", c.CSMA.CollisionProbability)
	}
	if c.Endpoints.FirstID == c.Endpoints.SecondID {
		return fmt.Errorf("los endpoints deben tener identidades distintas")
	}
	return nil
}

// FrameConfig arma la configuración de la capa de enlace. El flag
// final sigue la regla del flag por defecto: 'a' desplazado por N-1.
func (c Config) FrameConfig() frame.Config {
	fc := frame.DefaultConfig()
	fc.N = c.Framing.N
	fc.FlagEnd = byte('a' + c.Framing.N - 1)
	fc.WithFCS = c.Framing.WithFCS
	return fc
}

// CSMAParams arma los parámetros de contención.
func (c Config) CSMAParams() csmacd.Params {
	p := csmacd.DefaultParams()
	p.MaxRetries = c.CSMA.MaxRetries
	p.SlotTime = c.CSMA.SlotTime
	p.BusyPollWait = c.CSMA.BusyPollWait
	p.InterByteDelay = c.CSMA.InterByteDelay
	return p
}

// Sensor arma el sensor de canal simulado con las probabilidades de
// ocupación y colisión configuradas. La semilla de ruido también
// gobierna el sensor, de modo que una corrida con semilla fija sea
// reproducible de punta a punta.
func (c Config) Sensor() (*csmacd.SimulatedSensor, error) {
	var s *csmacd.SimulatedSensor
	if c.Noise.Seed != 0 {
		s = csmacd.NewSimulatedSensorWithSeed(c.Noise.Seed)
	} else {
		s = csmacd.NewSimulatedSensor()
	}
	if err := s.SetProbabilities(c.CSMA.BusyProbability, c.CSMA.CollisionProbability); err != nil {
		return nil, err
	}
	return s, nil
}

// Corruptor arma el inyector de corrupción, o nil si está apagado.
func (c Config) Corruptor() (*noise.Corruptor, error) {
	if !c.Framing.Corrupt {
		return nil, nil
	}
	var corr *noise.Corruptor
	if c.Noise.Seed != 0 {
		corr = noise.NewCorruptorWithSeed(c.Noise.Seed)
	} else {
		corr = noise.NewCorruptor()
	}
	if err := corr.SetProbabilities(c.Noise.PSingle, c.Noise.PDouble); err != nil {
		return nil, err
	}
	return corr, nil
}
