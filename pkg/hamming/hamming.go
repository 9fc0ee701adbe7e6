package hamming

import "fmt"

// Paquete hamming implementa el código Hamming SEC-DED (corrección de
// error simple, detección de error doble): un código Hamming estándar
// con posiciones de paridad en las potencias de dos (indexado desde 1)
// más un bit de paridad global en la última posición.

// ParityLayout calcula los parámetros del código para m bits de datos:
// r es el mínimo entero con 2^r >= m + r + 1 y n = m + r + 1 es la
// longitud total del codeword (r paridades Hamming + 1 paridad global).
func ParityLayout(m int) (r, n int) {
	for (1 << r) < (m + r + 1) {
		r++
	}
	return r, m + r + 1
}

// isParityPos indica si la posición 1-indexada pos es una de las r
// posiciones de paridad Hamming (2^i con i < r). La última posición
// del codeword no cuenta aunque sea potencia de dos: está reservada
// para la paridad global.
func isParityPos(pos, r int) bool {
	if pos&(pos-1) != 0 {
		return false
	}
	// pos == 2^i; comprobar i < r
	i := 0
	for 1<<i < pos {
		i++
	}
	return i < r
}

// Encode codifica dataBits (valores 0/1) en un codeword SEC-DED de
// longitud n. Los bits de datos ocupan, en su orden original, las
// posiciones que no son potencias de dos; cada posición de paridad
// p = 2^i guarda el XOR de todas las posiciones cuyo índice 1-indexado
// tiene el bit i encendido (excluyéndose a sí misma); la última
// posición guarda el XOR de las n-1 anteriores.
func Encode(dataBits []byte) ([]byte, error) {
	for i, b := range dataBits {
		if b != 0 && b != 1 {
			return nil, fmt.Errorf("bit inválido en posición %d: %d (debe ser 0 o 1)", i, b)
		}
	}

	m := len(dataBits)
	r, n := ParityLayout(m)
	code := make([]byte, n)

	// Colocar los bits de datos en las posiciones libres.
	dataIdx := 0
	for pos := 1; pos <= n-1; pos++ {
		if isParityPos(pos, r) {
			continue
		}
		code[pos-1] = dataBits[dataIdx]
		dataIdx++
	}

	// Paridades Hamming en las potencias de dos.
	for i := 0; i < r; i++ {
		p := 1 << i
		var parity byte
		for pos := 1; pos <= n; pos++ {
			if pos != p && (pos>>i)&1 == 1 {
				parity ^= code[pos-1]
			}
		}
		code[p-1] = parity
	}

	// Paridad global sobre todo lo anterior.
	var overall byte
	for pos := 1; pos <= n-1; pos++ {
		overall ^= code[pos-1]
	}
	code[n-1] = overall

	return code, nil
}

// Decode analiza un codeword SEC-DED y devuelve los bits de datos
// extraídos, si se corrigió un error simple y si se detectó un error
// doble. Clasificación según síndrome y paridad total:
//
//	síndrome == 0 y paridad == 0  → sin error
//	síndrome != 0 y paridad == 1  → error simple, se corrige en la
//	                                posición 1-indexada que indica el
//	                                síndrome
//	síndrome != 0 y paridad == 0  → error doble: detectado, NO corregido
//	síndrome == 0 y paridad == 1  → el error cayó en el propio bit de
//	                                paridad global (o hubo un número
//	                                impar ≥3 de errores); se reporta
//	                                como error doble por prudencia
//
// El síndrome se calcula sobre el código Hamming base (posiciones
// 1..n-1); la paridad global solo participa en la paridad total.
// Cuando doubleError es true los datos devueltos no son confiables.
func Decode(codeword []byte) (dataBits []byte, corrected, doubleError bool, err error) {
	n := len(codeword)
	if n < 3 {
		return nil, false, false, fmt.Errorf("codeword demasiado corto: %d bits", n)
	}
	for i, b := range codeword {
		if b != 0 && b != 1 {
			return nil, false, false, fmt.Errorf("bit inválido en posición %d: %d (debe ser 0 o 1)", i, b)
		}
	}

	m := dataLenFor(n)
	r, _ := ParityLayout(m)

	// Síndrome: XOR de los índices 1-indexados de los bits a 1,
	// excluyendo la posición de paridad global (esa no pertenece al
	// código Hamming base; incluirla haría que un codeword válido con
	// paridad global 1 pareciera corrupto). La paridad total sí cubre
	// las n posiciones.
	syndrome := 0
	var totalParity byte
	for pos := 1; pos <= n; pos++ {
		if codeword[pos-1] == 1 {
			if pos < n {
				syndrome ^= pos
			}
			totalParity ^= 1
		}
	}

	work := codeword
	switch {
	case syndrome == 0 && totalParity == 0:
		// Sin error.
	case syndrome != 0 && totalParity == 1:
		if syndrome >= n {
			// El síndrome apunta fuera del código base: más de un error.
			doubleError = true
			break
		}
		work = make([]byte, n)
		copy(work, codeword)
		work[syndrome-1] ^= 1
		corrected = true
	case syndrome != 0 && totalParity == 0:
		doubleError = true
	default:
		// síndrome == 0 y paridad == 1: rama defensiva.
		doubleError = true
	}

	// Extraer los bits de datos en su orden original.
	dataBits = make([]byte, 0, m)
	for pos := 1; pos <= n-1; pos++ {
		if isParityPos(pos, r) {
			continue
		}
		dataBits = append(dataBits, work[pos-1])
	}

	return dataBits, corrected, doubleError, nil
}

// ParityBits extrae del codeword los r+1 bits de paridad: las r
// paridades Hamming en orden ascendente de potencia de dos y al final
// la paridad global. Es la parte del codeword que viaja en el campo
// FCS de un cadre.
func ParityBits(codeword []byte, m int) ([]byte, error) {
	r, n := ParityLayout(m)
	if len(codeword) != n {
		return nil, fmt.Errorf("longitud de codeword inválida: %d (esperado %d para m=%d)", len(codeword), n, m)
	}
	bits := make([]byte, 0, r+1)
	for i := 0; i < r; i++ {
		bits = append(bits, codeword[(1<<i)-1])
	}
	bits = append(bits, codeword[n-1])
	return bits, nil
}

// AssembleCodeword reconstruye un codeword SEC-DED a partir de los
// bits de datos recibidos y de los bits de paridad extraídos del FCS
// (en el mismo orden que produce ParityBits). Es la operación inversa
// a la separación datos/paridad que hace el emisor.
func AssembleCodeword(dataBits, parityBits []byte) ([]byte, error) {
	m := len(dataBits)
	r, n := ParityLayout(m)
	if len(parityBits) < r+1 {
		return nil, fmt.Errorf("bits de paridad insuficientes: %d (esperado %d)", len(parityBits), r+1)
	}

	code := make([]byte, n)
	dataIdx := 0
	for pos := 1; pos <= n-1; pos++ {
		if isParityPos(pos, r) {
			continue
		}
		code[pos-1] = dataBits[dataIdx]
		dataIdx++
	}
	for i := 0; i < r; i++ {
		code[(1<<i)-1] = parityBits[i]
	}
	code[n-1] = parityBits[r]
	return code, nil
}

// dataLenFor invierte ParityLayout: dado n devuelve el m con
// ParityLayout(m) == (_, n).
func dataLenFor(n int) int {
	m := n
	for {
		if _, total := ParityLayout(m); total == n {
			return m
		}
		if m == 0 {
			return 0
		}
		m--
	}
}
