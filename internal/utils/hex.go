package utils

// BytesToHex renders b as lowercase hex without separators, the way the
// station API keys controllers by hardware address.
func BytesToHex(b []byte) string {
	const hexd = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, x := range b {
		out = append(out, hexd[x>>4], hexd[x&0x0F])
	}
	return string(out)
}
