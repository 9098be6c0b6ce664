package protocol

import "bytes"

// Sniff guesses which encoder produced payload. It returns "" when the
// payload matches none of them.
func Sniff(payload []byte) string {
	switch {
	case len(payload) == 0:
		return ""
	case IsBundle(payload):
		return FormatOSC
	case payload[0] == '{':
		return FormatJSON
	case bytes.HasPrefix(payload, []byte("meta\t")), bytes.HasPrefix(payload, []byte("x\ty")):
		return FormatTSV
	}
	if _, err := DecodeStruct(payload); err == nil {
		return FormatProto
	}
	return ""
}
