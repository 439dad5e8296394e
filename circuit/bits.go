//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package circuit

// BytesToBits converts data to bits, most significant bit of each
// byte first.
func BytesToBits(data []byte) []bool {
	result := make([]bool, len(data)*8)
	for i := range result {
		result[i] = (data[i/8]>>(7-i%8))&1 == 1
	}
	return result
}

// BitsToBytes converts bits to bytes, most significant bit of each
// byte first. A partial last byte is padded with zero bits.
func BitsToBytes(bits []bool) []byte {
	result := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			result[i/8] |= 1 << (7 - i%8)
		}
	}
	return result
}

// IntToBits converts the n least significant bits of v to bits,
// least significant bit first.
func IntToBits(v uint64, n int) []bool {
	result := make([]bool, n)
	for i := 0; i < n && i < 64; i++ {
		result[i] = (v>>i)&1 == 1
	}
	return result
}

// BitsToInt converts bits, least significant bit first, to an
// integer. Bits beyond 64 are ignored.
func BitsToInt(bits []bool) uint64 {
	var result uint64
	for i, b := range bits {
		if b && i < 64 {
			result |= 1 << i
		}
	}
	return result
}
