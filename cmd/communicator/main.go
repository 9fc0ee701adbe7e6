package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/application"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/config"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/frame"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/link"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/logging"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/presentation"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/transport"
)

// Communicator orquesta el ciclo pedir-enviar-recibir entre dos
// endpoints sobre un canal en memoria. El enlace se arma por sesión de
// mensaje, porque cada configuración puede cambiar la geometría de los
// cadres y el acceso al medio.
type Communicator struct {
	cfg   config.Config
	app   *application.ApplicationLayer
	log   zerolog.Logger
	wsURL string // si no está vacío, el enlace va a un servidor WebSocket
}

// simLink es un enlace vivo: dos endpoints cruzados y los contadores
// de recepción del segundo.
type simLink struct {
	e1, e2 *link.Endpoint
	mu     sync.Mutex
	rx     []string
	jams   int
}

func (c *Communicator) buildLink(ctx context.Context, msgCfg *application.MessageConfig) (*simLink, error) {
	fc := c.cfg.FrameConfig()
	fc.WithFCS = msgCfg.WithFCS
	codec, err := frame.NewCodec(fc)
	if err != nil {
		return nil, err
	}

	if msgCfg.Corrupt {
		noiseCfg := c.cfg
		noiseCfg.Framing.Corrupt = true
		corr, err := noiseCfg.Corruptor()
		if err != nil {
			return nil, err
		}
		codec.SetCorruptor(corr.Hook())
	}

	opts := link.Options{
		UseCSMA: msgCfg.UseCSMA,
		Params:  c.cfg.CSMAParams(),
		Logger:  c.log,
	}
	if msgCfg.UseCSMA {
		sensor, err := c.cfg.Sensor()
		if err != nil {
			return nil, err
		}
		opts.Sensor = sensor
	}

	l := &simLink{}
	rxEvents := link.Events{
		OnDecodedText: func(id int, text string, state frame.FCSState) {
			l.mu.Lock()
			l.rx = append(l.rx, text)
			l.mu.Unlock()
			fmt.Printf("📥 [endpoint %d] %q (%s)\n", id, text, presentation.FormatearEstadoFCS(state))
		},
		OnCollision: func(int) {
			l.mu.Lock()
			l.jams++
			l.mu.Unlock()
		},
	}

	if c.wsURL != "" {
		// Un solo endpoint contra el servidor remoto: lo que el servidor
		// devuelva entra por el mismo socket.
		ws, err := transport.DialWS(c.wsURL)
		if err != nil {
			return nil, err
		}
		l.e1 = link.NewEndpoint(c.cfg.Endpoints.FirstID, ws, ws, codec, rxEvents, opts)
		l.e1.Start(ctx)
		return l, nil
	}

	a, b := transport.Pair(4096)
	l.e1 = link.NewEndpoint(c.cfg.Endpoints.FirstID, a, a, codec, link.Events{}, opts)
	l.e2 = link.NewEndpoint(c.cfg.Endpoints.SecondID, b, b, codec, rxEvents, opts)

	l.e1.Start(ctx)
	l.e2.Start(ctx)
	return l, nil
}

func (l *simLink) stop() {
	l.e1.Stop()
	if l.e2 != nil {
		l.e2.Stop()
	}
}

func (l *simLink) received() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rx), l.jams
}

// Run ejecuta el modo pedido hasta EOF o cancelación.
func (c *Communicator) Run(ctx context.Context, mode string) error {
	switch mode {
	case "manual":
		return c.runManual(ctx)
	case "benchmark":
		return c.runBenchmark(ctx)
	default:
		return fmt.Errorf("modo inválido: %s", mode)
	}
}

func (c *Communicator) runManual(ctx context.Context) error {
	for ctx.Err() == nil {
		msgCfg, err := c.app.SolicitarMensaje("manual")
		if err != nil {
			// EOF en stdin termina la sesión sin drama
			return nil
		}
		c.app.MostrarConfiguracion(msgCfg)

		l, err := c.buildLink(ctx, msgCfg)
		if err != nil {
			return err
		}
		report, err := l.e1.Send(ctx, msgCfg.Text)
		if err != nil {
			l.stop()
			return err
		}
		// dar tiempo a que el receptor drene el canal
		time.Sleep(300 * time.Millisecond)
		l.stop()
		c.app.MostrarReporte(report)
	}
	return ctx.Err()
}

func (c *Communicator) runBenchmark(ctx context.Context) error {
	msgCfg, err := c.app.SolicitarMensaje("benchmark")
	if err != nil {
		return err
	}
	c.app.MostrarConfiguracion(msgCfg)

	l, err := c.buildLink(ctx, msgCfg)
	if err != nil {
		return err
	}
	defer l.stop()

	total := link.SendReport{}
	start := time.Now()
	for i := 0; i < msgCfg.Count; i++ {
		if ctx.Err() != nil {
			break
		}
		report, err := l.e1.Send(ctx, msgCfg.Text)
		if err != nil {
			return err
		}
		total.Frames += report.Frames
		total.Delivered += report.Delivered
		total.Failed += report.Failed
		total.Collisions += report.Collisions
		total.BytesSent += report.BytesSent
	}
	elapsed := time.Since(start)

	// esperar a que lleguen los últimos cadres
	time.Sleep(300 * time.Millisecond)
	recibidos, jams := l.received()

	fmt.Println("\n📊 Resultados del benchmark:")
	fmt.Println("─────────────────────────────")
	fmt.Printf("Cadres emitidos: %d\n", total.Frames)
	fmt.Printf("Entregados: %d\n", total.Delivered)
	fmt.Printf("Fallidos (reintentos agotados): %d\n", total.Failed)
	fmt.Printf("Colisiones: %d\n", total.Collisions)
	fmt.Printf("Señales de jam vistas por el receptor: %d\n", jams)
	fmt.Printf("Mensajes recibidos: %d\n", recibidos)
	fmt.Printf("Bytes en el cable: %d\n", total.BytesSent)
	if total.Frames > 0 {
		fmt.Printf("Tasa de entrega: %.2f%%\n", 100*float64(total.Delivered)/float64(total.Frames))
	}
	fmt.Printf("Tiempo total: %s\n", elapsed.Round(time.Millisecond))
	return nil
}

func main() {
	configPath := flag.String("config", "", "Ruta del archivo TOML de configuración")
	mode := flag.String("mode", "manual", "Modo de operación: manual o benchmark")
	wsURL := flag.String("ws", "", "URL de un servidor WebSocket; vacío usa el canal en memoria")
	logLevel := flag.String("log", "", "Nivel de log (sobrescribe la configuración)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := logging.InitLogger("communicator", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("🔗 Simulador de capa de enlace")
	fmt.Printf("   N=%d  FCS=%v  corrupción=%v  CSMA/CD=%v\n\n",
		cfg.Framing.N, cfg.Framing.WithFCS, cfg.Framing.Corrupt, cfg.CSMA.Enabled)

	app := application.NewApplicationLayer()
	app.SetDefaults(application.Defaults{
		WithFCS: cfg.Framing.WithFCS,
		Corrupt: cfg.Framing.Corrupt,
		UseCSMA: cfg.CSMA.Enabled,
	})

	comm := &Communicator{cfg: cfg, app: app, log: log, wsURL: *wsURL}
	if err := comm.Run(ctx, *mode); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("la simulación terminó con error")
	}
}
