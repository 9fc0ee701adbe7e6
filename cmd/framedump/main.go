package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/frame"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/logging"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/noise"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/presentation"
)

// framedump arma los cadres de un mensaje y los muestra campo a campo,
// sin transmitir nada. Útil para inspeccionar el stuffing y el FCS.
func main() {
	n := flag.Int("n", 9, "Parámetro N del cadre (payload útil N+1 bytes)")
	withFCS := flag.Bool("fcs", true, "Calcular el FCS Hamming")
	corrupt := flag.Bool("corrupt", false, "Inyectar corrupción simulada antes del stuffing")
	seed := flag.Int64("seed", 0, "Semilla de la corrupción (0 usa el reloj)")
	source := flag.Int("source", 1, "Identidad del emisor")
	flag.Parse()

	logging.InitLogger("framedump", "warn")

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		fmt.Fprintln(os.Stderr, "uso: framedump [opciones] <mensaje>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := presentation.ValidarTexto(text); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	cfg := frame.DefaultConfig()
	cfg.N = *n
	cfg.FlagEnd = byte('a' + *n - 1)
	cfg.WithFCS = *withFCS
	codec, err := frame.NewCodec(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	if *corrupt {
		var corr *noise.Corruptor
		if *seed != 0 {
			corr = noise.NewCorruptorWithSeed(*seed)
		} else {
			corr = noise.NewCorruptor()
		}
		codec.SetCorruptor(corr.Hook())
	}

	fmt.Print(presentation.FormatearEstadisticas(text))
	fmt.Printf("\nGeometría: DATA=%d bytes, FCS=%d bytes, flag %q\n\n",
		codec.DataLength(), codec.FCSLength(), string(codec.Flag()))

	chunks := codec.SplitChunks([]byte(text))
	for i, chunk := range chunks {
		frameBytes, preview, err := codec.EncodeChunk(chunk, frame.SourceAddr(*source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ cadre %d: %v\n", i+1, err)
			os.Exit(1)
		}
		fmt.Printf("Cadre %d/%d (%d bytes en el cable):\n", i+1, len(chunks), len(frameBytes))
		fmt.Print(presentation.FormatearPreview(preview))
		fmt.Println()
	}
}
