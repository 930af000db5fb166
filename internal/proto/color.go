package proto

// PackColorRGBA packs float channels into a u32 with red in the top byte.
// Channels clamp to [0,1] and round half up, matching the wire convention
// used by layer-style and override commands.
func PackColorRGBA(r, g, b, a float32) uint32 {
	clamp := func(v float32) uint32 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint32(v*255.0 + 0.5)
	}
	return clamp(r)<<24 | clamp(g)<<16 | clamp(b)<<8 | clamp(a)
}

// UnpackColorRGBA splits a packed u32 back into float channels.
func UnpackColorRGBA(rgba uint32) (r, g, b, a float32) {
	r = float32((rgba>>24)&0xFF) / 255.0
	g = float32((rgba>>16)&0xFF) / 255.0
	b = float32((rgba>>8)&0xFF) / 255.0
	a = float32(rgba&0xFF) / 255.0
	return
}
