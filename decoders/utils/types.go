package utils

import (
	"fmt"
	"net"
	"net/netip"
)

type MacAddress []byte // purely for the formatting purpose

func (s MacAddress) String() string {
	return net.HardwareAddr([]byte(s)).String()
}

func (s MacAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", s.String())), nil
}

type IPAddress []byte // purely for the formatting purpose

// IPv4Address builds a 4-byte address from its big-endian integer form.
func IPv4Address(ip uint32) IPAddress {
	return IPAddress{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)}
}

func (s IPAddress) Addr() netip.Addr {
	ip, _ := netip.AddrFromSlice([]byte(s))
	return ip
}

// Uint32 returns the integer form of a 4-byte address, 0 otherwise.
func (s IPAddress) Uint32() uint32 {
	if len(s) != 4 {
		return 0
	}
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
}

func (s IPAddress) String() string {
	return s.Addr().String()
}

func (s IPAddress) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%s\"", s.String())), nil
}
