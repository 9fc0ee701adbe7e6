package noise

import (
	"fmt"
	"math/rand"
	"time"
)

// Corruptor maneja la inyección de errores de bit en la región
// datos+FCS de un cadre, antes del stuffing. Es una ayuda de
// simulación enchufable: el códec funciona igual con o sin él.
type Corruptor struct {
	rng     *rand.Rand
	pSingle float64
	pDouble float64
}

// Probabilidades por defecto del enunciado: 40% un bit, 25% dos bits,
// 35% sin corrupción.
const (
	DefaultPSingle = 0.40
	DefaultPDouble = 0.25
)

// NewCorruptor crea una instancia con semilla aleatoria y las
// probabilidades por defecto.
func NewCorruptor() *Corruptor {
	return NewCorruptorWithSeed(time.Now().UnixNano())
}

// NewCorruptorWithSeed crea una instancia con semilla específica
// (para tests reproducibles).
func NewCorruptorWithSeed(seed int64) *Corruptor {
	c := &Corruptor{rng: rand.New(rand.NewSource(seed))}
	c.pSingle = DefaultPSingle
	c.pDouble = DefaultPDouble
	return c
}

// SetProbabilities ajusta las probabilidades de corrupción simple y
// doble. La suma no puede exceder 1.0.
func (c *Corruptor) SetProbabilities(pSingle, pDouble float64) error {
	if pSingle < 0 || pDouble < 0 || pSingle+pDouble > 1.0 {
		return fmt.Errorf("probabilidades inválidas: simple=%.2f doble=%.2f", pSingle, pDouble)
	}
	c.pSingle = pSingle
	c.pDouble = pDouble
	return nil
}

// CorruptionResult describe los errores inyectados en una región.
type CorruptionResult struct {
	Data         []byte // copia con el ruido aplicado
	BitPositions []int  // posiciones de bit global (byte*8 + bit) alteradas
}

// Corrupt devuelve una copia de data con 0, 1 o 2 bits invertidos
// según las probabilidades configuradas. Los dos bits de una
// corrupción doble son siempre posiciones distintas.
func (c *Corruptor) Corrupt(data []byte) *CorruptionResult {
	out := make([]byte, len(data))
	copy(out, data)
	result := &CorruptionResult{Data: out}
	if len(data) == 0 {
		return result
	}

	total := len(data) * 8
	switch v := c.rng.Float64(); {
	case v < c.pSingle:
		result.BitPositions = []int{c.rng.Intn(total)}
	case v < c.pSingle+c.pDouble:
		i := c.rng.Intn(total)
		j := c.rng.Intn(total)
		for j == i {
			j = c.rng.Intn(total)
		}
		result.BitPositions = []int{i, j}
	}

	for _, pos := range result.BitPositions {
		out[pos/8] ^= 1 << (7 - pos%8)
	}
	return result
}

// Hook adapta el corruptor a la firma que espera el códec de cadres.
func (c *Corruptor) Hook() func([]byte) []byte {
	return func(data []byte) []byte {
		return c.Corrupt(data).Data
	}
}

// ChannelStats contiene estadísticas agregadas de un canal ruidoso
// simulado, para el modo benchmark.
type ChannelStats struct {
	Iterations        int
	TotalErrors       int
	SingleErrors      int
	DoubleErrors      int
	CleanFrames       int
	ErrorDistribution map[int]int // cantidad_errores -> frecuencia
}

// SimulateChannel inyecta ruido sobre la misma región muchas veces y
// acumula la distribución de errores observada.
func (c *Corruptor) SimulateChannel(data []byte, iterations int) (*ChannelStats, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("iteraciones debe ser mayor a 0: %d", iterations)
	}

	stats := &ChannelStats{
		Iterations:        iterations,
		ErrorDistribution: make(map[int]int),
	}
	for i := 0; i < iterations; i++ {
		result := c.Corrupt(data)
		n := len(result.BitPositions)
		stats.TotalErrors += n
		stats.ErrorDistribution[n]++
		switch n {
		case 0:
			stats.CleanFrames++
		case 1:
			stats.SingleErrors++
		case 2:
			stats.DoubleErrors++
		}
	}
	return stats, nil
}
