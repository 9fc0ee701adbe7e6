package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/csmacd"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/frame"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/logging"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/transport"
)

// csmabench mide el comportamiento del acceso al medio bajo distintas
// probabilidades de canal ocupado y colisión: tasa de éxito, intentos
// consumidos y tiempo dormido en backoff.
func main() {
	iterations := flag.Int("iter", 200, "Transmisiones a simular")
	busy := flag.Float64("busy", csmacd.DefaultBusyProbability, "Probabilidad de canal ocupado")
	collision := flag.Float64("collision", csmacd.DefaultCollisionProbability, "Probabilidad de colisión por byte")
	slotMS := flag.Int64("slot", 1, "Duración del slot de backoff en ms")
	seed := flag.Int64("seed", 0, "Semilla del sensor y el backoff (0 usa el reloj)")
	logLevel := flag.String("log", "warn", "Nivel de log")
	flag.Parse()

	log := logging.InitLogger("csmabench", *logLevel)

	sensor := csmacd.NewSimulatedSensor()
	if *seed != 0 {
		sensor = csmacd.NewSimulatedSensorWithSeed(*seed)
	}
	if err := sensor.SetProbabilities(*busy, *collision); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	params := csmacd.DefaultParams()
	params.SlotTime = time.Duration(*slotMS) * time.Millisecond
	params.BusyPollWait = time.Millisecond
	params.InterByteDelay = 0

	// El otro extremo del par descarta todo lo que llega.
	a, b := transport.Pair(1 << 16)
	defer a.Close()
	go drain(b)

	tx := csmacd.NewTransmitter(a, sensor, params, log)
	if *seed != 0 {
		tx.SeedBackoff(*seed)
	}

	codec, err := frame.NewCodec(frame.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	chunk := codec.SplitChunks([]byte("benchmark"))[0]
	frameBytes, _, err := codec.EncodeChunk(chunk, frame.SourceAddr(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		successes  int
		collisions int
		attempts   int
		backoff    time.Duration
		worst      int
	)

	start := time.Now()
	for i := 0; i < *iterations && ctx.Err() == nil; i++ {
		result, err := tx.Transmit(ctx, frameBytes)
		if result != nil {
			collisions += result.Collisions
			attempts += result.Attempts
			backoff += result.Backoff
			if result.Collisions > worst {
				worst = result.Collisions
			}
		}
		if err == nil {
			successes++
		}
	}
	elapsed := time.Since(start)
	done := *iterations
	if ctx.Err() != nil {
		fmt.Println("⚠️  interrumpido")
	}

	fmt.Println("\n📊 Resultados CSMA/CD:")
	fmt.Println("─────────────────────────────")
	fmt.Printf("Transmisiones: %d (ocupado=%.2f, colisión=%.2f)\n", done, *busy, *collision)
	fmt.Printf("Exitosas: %d (%.2f%%)\n", successes, 100*float64(successes)/float64(done))
	fmt.Printf("Colisiones totales: %d (peor cadre: %d)\n", collisions, worst)
	if done > 0 {
		fmt.Printf("Intentos promedio por cadre: %.2f\n", float64(attempts)/float64(done))
		fmt.Printf("Backoff promedio por cadre: %s\n", (backoff / time.Duration(done)).Round(time.Microsecond))
	}
	fmt.Printf("Tiempo total: %s\n", elapsed.Round(time.Millisecond))
}

func drain(t transport.Transport) {
	for {
		if _, ok, err := t.ReadByte(time.Second); err != nil || !ok && !t.IsOpen() {
			return
		}
	}
}
