package wire

import "math"

func int32BitsToFloat32(bits int32) float32 {
	return math.Float32frombits(uint32(bits))
}

func float32BitsToInt32(f float32) int32 {
	return int32(math.Float32bits(f))
}
