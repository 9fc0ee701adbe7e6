package hamming

// BytesToBits expande bytes a un slice de bits (0/1), MSB primero.
func BytesToBits(data []byte) []byte {
	bits := make([]byte, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>i)&1)
		}
	}
	return bits
}

// BitsToBytes empaqueta bits (0/1) en bytes, MSB primero. Si la
// longitud no es múltiplo de 8, el último byte se rellena con ceros
// por la derecha.
func BitsToBytes(bits []byte) []byte {
	if len(bits) == 0 {
		return []byte{}
	}
	out := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit != 0 {
			out[i/8] |= 1 << (7 - i%8)
		}
	}
	return out
}
