package presentation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Diegoval-Dev/R-Lab4/datalink-go/pkg/frame"
)

// MaxMessageLen acota los mensajes aceptados para transmisión.
const MaxMessageLen = 65535

// ValidarTexto verifica que el texto sea válido para transmisión:
// ASCII imprimible más tab, newline y carriage return.
func ValidarTexto(texto string) error {
	if texto == "" {
		return fmt.Errorf("el texto no puede estar vacío")
	}

	if len(texto) > MaxMessageLen {
		return fmt.Errorf("el texto es demasiado largo: %d caracteres (máximo %d)", len(texto), MaxMessageLen)
	}

	if !utf8.ValidString(texto) {
		return fmt.Errorf("el texto contiene caracteres no válidos UTF-8")
	}

	for i, r := range texto {
		if r > 127 {
			return fmt.Errorf("carácter no-ASCII en posición %d: '%c' (código %d)", i, r, r)
		}
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return fmt.Errorf("carácter de control no permitido en posición %d: código %d", i, r)
		}
	}

	return nil
}

// Estadisticas resume la composición de un mensaje.
type Estadisticas struct {
	Caracteres int
	Bytes      int
	Bits       int
	Letras     int
	Numeros    int
	Espacios   int
	Especiales int
}

// ObtenerEstadisticas devuelve información sobre el mensaje.
func ObtenerEstadisticas(texto string) Estadisticas {
	stats := Estadisticas{
		Caracteres: len(texto),
		Bytes:      len([]byte(texto)),
		Bits:       len(texto) * 8,
	}

	for _, char := range texto {
		switch {
		case char >= 'a' && char <= 'z' || char >= 'A' && char <= 'Z':
			stats.Letras++
		case char >= '0' && char <= '9':
			stats.Numeros++
		case char == ' ' || char == '\t' || char == '\n' || char == '\r':
			stats.Espacios++
		default:
			stats.Especiales++
		}
	}

	return stats
}

// FormatearEstadisticas arma el resumen legible de un mensaje.
func FormatearEstadisticas(texto string) string {
	stats := ObtenerEstadisticas(texto)

	var sb strings.Builder
	sb.WriteString("📝 Estadísticas del mensaje:\n")
	fmt.Fprintf(&sb, "   Caracteres: %d\n", stats.Caracteres)
	fmt.Fprintf(&sb, "   Bytes: %d\n", stats.Bytes)
	fmt.Fprintf(&sb, "   Bits: %d\n", stats.Bits)
	sb.WriteString("   Composición:\n")
	fmt.Fprintf(&sb, "     - Letras: %d\n", stats.Letras)
	fmt.Fprintf(&sb, "     - Números: %d\n", stats.Numeros)
	fmt.Fprintf(&sb, "     - Espacios: %d\n", stats.Espacios)
	fmt.Fprintf(&sb, "     - Especiales: %d\n", stats.Especiales)
	return sb.String()
}

// FormatearPreview arma la vista legible de un cadre ya armado: flag,
// direcciones, el cuerpo en hex con los bytes escapados marcados y la
// posición donde empieza el FCS.
func FormatearPreview(p *frame.FramePreview) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 Cadre: flag=%q SA=0x%02X DA=0x%02X\n", string(p.Flag), p.SourceAddr, p.DestAddr)

	escaped := make(map[int]bool, len(p.EscapedIdx))
	for _, idx := range p.EscapedIdx {
		escaped[idx] = true
	}

	sb.WriteString("   Cuerpo:")
	for i, b := range p.Body {
		switch {
		case escaped[i]:
			fmt.Fprintf(&sb, " [%02X]", b)
		case p.FCSOffset >= 0 && i == p.FCSOffset:
			fmt.Fprintf(&sb, " |%02X", b)
		default:
			fmt.Fprintf(&sb, " %02X", b)
		}
	}
	sb.WriteByte('\n')

	if p.FCSOffset >= 0 {
		fmt.Fprintf(&sb, "   FCS a partir del byte %d del cuerpo (| marca el inicio, [..] bytes escapados)\n", p.FCSOffset)
	} else {
		sb.WriteString("   Sin FCS ([..] bytes escapados)\n")
	}
	return sb.String()
}

// FormatearEstadoFCS describe un estado FCS para la consola.
func FormatearEstadoFCS(state frame.FCSState) string {
	switch state {
	case frame.FCSValid:
		return "✅ FCS válido"
	case frame.FCSCorrected:
		return "🔧 error simple corregido"
	case frame.FCSDoubleError:
		return "❌ error doble, contenido no confiable"
	default:
		return "FCS deshabilitado"
	}
}
