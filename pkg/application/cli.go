package application

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/link"
	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/presentation"
)

// MessageConfig contiene la configuración del mensaje a enviar
type MessageConfig struct {
	Text    string // Mensaje de texto a enviar
	WithFCS bool   // Calcular y verificar el FCS Hamming
	Corrupt bool   // Inyectar corrupción simulada antes del stuffing
	UseCSMA bool   // Contender por el canal con CSMA/CD
	Mode    string // "manual" o "benchmark"
	Count   int    // Número de mensajes para benchmark
}

// Defaults son las respuestas por defecto de los prompts. El binario
// las deriva de la configuración cargada, de modo que editar el TOML
// cambia lo que una respuesta vacía significa.
type Defaults struct {
	WithFCS bool
	Corrupt bool
	UseCSMA bool
}

// ApplicationLayer maneja la interacción con el usuario
type ApplicationLayer struct {
	scanner  *bufio.Scanner
	out      io.Writer
	defaults Defaults
}

// NewApplicationLayer crea una instancia leyendo de stdin
func NewApplicationLayer() *ApplicationLayer {
	return NewApplicationLayerWith(os.Stdin, os.Stdout)
}

// NewApplicationLayerWith crea una instancia sobre los streams dados
func NewApplicationLayerWith(in io.Reader, out io.Writer) *ApplicationLayer {
	return &ApplicationLayer{
		scanner:  bufio.NewScanner(in),
		out:      out,
		defaults: Defaults{WithFCS: true},
	}
}

// SetDefaults reemplaza las respuestas por defecto de los prompts.
func (app *ApplicationLayer) SetDefaults(d Defaults) {
	app.defaults = d
}

// SolicitarMensaje solicita entrada del usuario según el modo
func (app *ApplicationLayer) SolicitarMensaje(mode string) (*MessageConfig, error) {
	switch mode {
	case "manual":
		return app.solicitarMensajeManual()
	case "benchmark":
		return app.solicitarMensajeBenchmark()
	default:
		return nil, fmt.Errorf("modo inválido: %s (usar 'manual' o 'benchmark')", mode)
	}
}

// solicitarMensajeManual solicita configuración manual del usuario
func (app *ApplicationLayer) solicitarMensajeManual() (*MessageConfig, error) {
	config := &MessageConfig{Mode: "manual", Count: 1}

	// Solicitar mensaje
	for {
		fmt.Fprint(app.out, "Ingrese el mensaje a transmitir: ")
		if !app.scanner.Scan() {
			return nil, fmt.Errorf("error leyendo mensaje")
		}
		config.Text = strings.TrimSpace(app.scanner.Text())
		if err := presentation.ValidarTexto(config.Text); err != nil {
			fmt.Fprintf(app.out, "❌ %v\n", err)
			continue
		}
		break
	}

	var err error
	if config.WithFCS, err = app.preguntarSiNo("¿Calcular FCS Hamming?", app.defaults.WithFCS); err != nil {
		return nil, err
	}
	if config.Corrupt, err = app.preguntarSiNo("¿Simular corrupción del canal?", app.defaults.Corrupt); err != nil {
		return nil, err
	}
	if config.UseCSMA, err = app.preguntarSiNo("¿Contender con CSMA/CD?", app.defaults.UseCSMA); err != nil {
		return nil, err
	}

	return config, nil
}

// solicitarMensajeBenchmark solicita configuración para pruebas
// automatizadas; FCS, corrupción y CSMA/CD salen de los defaults sin
// preguntar.
func (app *ApplicationLayer) solicitarMensajeBenchmark() (*MessageConfig, error) {
	config := &MessageConfig{
		Mode:    "benchmark",
		WithFCS: app.defaults.WithFCS,
		Corrupt: app.defaults.Corrupt,
		UseCSMA: app.defaults.UseCSMA,
	}

	fmt.Fprint(app.out, "Mensaje base para benchmark [Hola mundo]: ")
	if !app.scanner.Scan() {
		return nil, fmt.Errorf("error leyendo mensaje")
	}
	config.Text = strings.TrimSpace(app.scanner.Text())
	if config.Text == "" {
		config.Text = "Hola mundo" // Valor por defecto
	}
	if err := presentation.ValidarTexto(config.Text); err != nil {
		return nil, err
	}

	// Cantidad de mensajes
	for {
		fmt.Fprint(app.out, "Número de mensajes [1000]: ")
		if !app.scanner.Scan() {
			return nil, fmt.Errorf("error leyendo cantidad")
		}

		countStr := strings.TrimSpace(app.scanner.Text())
		if countStr == "" {
			config.Count = 1000 // Valor por defecto
			break
		}

		count, err := strconv.Atoi(countStr)
		if err != nil {
			fmt.Fprintln(app.out, "❌ Cantidad inválida")
			continue
		}
		if count <= 0 {
			fmt.Fprintln(app.out, "❌ La cantidad debe ser mayor a 0")
			continue
		}
		config.Count = count
		break
	}

	return config, nil
}

// preguntarSiNo pide una respuesta s/n con valor por defecto
func (app *ApplicationLayer) preguntarSiNo(prompt string, def bool) (bool, error) {
	for {
		fmt.Fprintf(app.out, "%s (s/n) [%s]: ", prompt, siNoCorto(def))
		if !app.scanner.Scan() {
			return false, fmt.Errorf("error leyendo respuesta")
		}
		switch strings.ToLower(strings.TrimSpace(app.scanner.Text())) {
		case "":
			return def, nil
		case "s", "si", "sí", "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintln(app.out, "❌ Responda s o n")
		}
	}
}

// MostrarConfiguracion muestra la configuración seleccionada
func (app *ApplicationLayer) MostrarConfiguracion(config *MessageConfig) {
	fmt.Fprintln(app.out, "\n📋 Configuración:")
	fmt.Fprintf(app.out, "   Mensaje: %q\n", config.Text)
	fmt.Fprintf(app.out, "   FCS Hamming: %s\n", siNo(config.WithFCS))
	fmt.Fprintf(app.out, "   Corrupción simulada: %s\n", siNo(config.Corrupt))
	fmt.Fprintf(app.out, "   CSMA/CD: %s\n", siNo(config.UseCSMA))
	fmt.Fprintf(app.out, "   Modo: %s\n", config.Mode)
	if config.Mode == "benchmark" {
		fmt.Fprintf(app.out, "   Mensajes: %d\n", config.Count)
	}
	fmt.Fprintln(app.out)
}

// MostrarReporte muestra el resultado de un envío completo
func (app *ApplicationLayer) MostrarReporte(report *link.SendReport) {
	if report.Failed == 0 {
		fmt.Fprintf(app.out, "✅ Transmisión exitosa: %d cadres, %d bytes", report.Delivered, report.BytesSent)
	} else {
		fmt.Fprintf(app.out, "❌ Transmisión parcial: %d/%d cadres entregados", report.Delivered, report.Frames)
	}
	if report.Collisions > 0 {
		fmt.Fprintf(app.out, " (%d colisiones)", report.Collisions)
	}
	fmt.Fprintln(app.out)
}

// ValidarConfiguracion valida que la configuración sea válida
func (app *ApplicationLayer) ValidarConfiguracion(config *MessageConfig) error {
	if config == nil {
		return fmt.Errorf("configuración es nil")
	}

	if err := presentation.ValidarTexto(config.Text); err != nil {
		return err
	}

	if config.Mode != "manual" && config.Mode != "benchmark" {
		return fmt.Errorf("modo inválido: %s", config.Mode)
	}

	if config.Mode == "benchmark" && config.Count <= 0 {
		return fmt.Errorf("cantidad de mensajes inválida: %d", config.Count)
	}

	return nil
}

func siNo(v bool) string {
	if v {
		return "sí"
	}
	return "no"
}

func siNoCorto(v bool) string {
	if v {
		return "s"
	}
	return "n"
}
