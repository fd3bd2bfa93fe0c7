package utils

import (
	"strconv"
)

var tcpFlagLetters = [6]byte{'U', 'A', 'P', 'R', 'S', 'F'}

// TCPFlagsString renders the six classic TCP flags, most significant first,
// with a dot for every unset bit (".A..S." for SYN-ACK).
func TCPFlagsString(flags uint8) string {
	var out [6]byte
	for i, letter := range tcpFlagLetters {
		if flags&(0x20>>uint(i)) != 0 {
			out[i] = letter
		} else {
			out[i] = '.'
		}
	}
	return string(out[:])
}

// ProtocolString returns the mnemonic of common IP protocols or the number.
func ProtocolString(proto uint8) string {
	switch proto {
	case 1:
		return "ICMP"
	case 2:
		return "IGMP"
	case 6:
		return "TCP"
	case 17:
		return "UDP"
	}
	return strconv.Itoa(int(proto))
}
