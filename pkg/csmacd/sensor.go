package csmacd

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ChannelSensor abstrae la detección de portadora y de colisiones.
// La implementación simulada reemplaza al hardware real: los mismos
// puntos de enganche servirían para un sensado físico.
type ChannelSensor interface {
	// ChannelBusy indica si el canal está ocupado en este instante.
	ChannelBusy() bool
	// CollisionDetected se evalúa una vez por byte transmitido.
	CollisionDetected() bool
}

// Probabilidades por defecto de la simulación del enunciado.
const (
	DefaultBusyProbability      = 0.70
	DefaultCollisionProbability = 0.30
)

// SimulatedSensor emula el canal con probabilidades fijas de
// ocupación y colisión.
type SimulatedSensor struct {
	mu            sync.Mutex
	rng           *rand.Rand
	busyProb      float64
	collisionProb float64
}

// NewSimulatedSensor crea un sensor con las probabilidades del
// enunciado (70% ocupado, 30% colisión) y semilla aleatoria.
func NewSimulatedSensor() *SimulatedSensor {
	return NewSimulatedSensorWithSeed(time.Now().UnixNano())
}

// NewSimulatedSensorWithSeed crea un sensor reproducible para tests.
func NewSimulatedSensorWithSeed(seed int64) *SimulatedSensor {
	return &SimulatedSensor{
		rng:           rand.New(rand.NewSource(seed)),
		busyProb:      DefaultBusyProbability,
		collisionProb: DefaultCollisionProbability,
	}
}

// SetProbabilities ajusta las probabilidades de ocupación y colisión.
func (s *SimulatedSensor) SetProbabilities(busy, collision float64) error {
	if busy < 0 || busy > 1 || collision < 0 || collision > 1 {
		return fmt.Errorf("probabilidades fuera de [0,1]: ocupado=%.2f colisión=%.2f", busy, collision)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busyProb = busy
	s.collisionProb = collision
	return nil
}

// Probabilities devuelve las probabilidades vigentes de ocupación y
// colisión.
func (s *SimulatedSensor) Probabilities() (busy, collision float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyProb, s.collisionProb
}

// ChannelBusy implementa ChannelSensor.
func (s *SimulatedSensor) ChannelBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.busyProb
}

// CollisionDetected implementa ChannelSensor.
func (s *SimulatedSensor) CollisionDetected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.collisionProb
}
