// Package align holds the alignment arithmetic shared by every memory resource.
// All alignments are powers of two.
package align

// Up returns n rounded up to the next multiple of alignment.
//
// Example:
//
//	Up(1, 256)   = 256
//	Up(256, 256) = 256
//	Up(257, 256) = 512
func Up(n, alignment int) int {
	mask := alignment - 1
	return (n + mask) &^ mask
}

// Down returns n rounded down to a multiple of alignment.
//
// Example:
//
//	Down(255, 256) = 0
//	Down(511, 256) = 256
func Down(n, alignment int) int {
	return n &^ (alignment - 1)
}

// IsAligned reports whether n is a multiple of alignment.
func IsAligned(n, alignment int) bool {
	return n&(alignment-1) == 0
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// UpAddr is Up for addresses.
func UpAddr(addr uintptr, alignment int) uintptr {
	mask := uintptr(alignment - 1)
	return (addr + mask) &^ mask
}
