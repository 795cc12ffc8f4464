package common

// WipeByteArray overwrites the contents of b with zeros. Callers use it to
// scrub passwords from memory once they are no longer needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
