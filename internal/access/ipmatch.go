package access

import (
	"encoding/binary"
	"net"
	"strconv"
	"strings"
)

// Matches reports whether ipStr satisfies a whitelist entry. Entries are
// either a literal IP or an IPv4 CIDR block; the CIDR mask is derived from
// the prefix length and compared bitwise.
func Matches(ipStr, entry string) bool {
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil {
		return false
	}

	entry = strings.TrimSpace(entry)
	if !strings.Contains(entry, "/") {
		other := net.ParseIP(entry)
		return other != nil && ip.Equal(other)
	}

	parts := strings.SplitN(entry, "/", 2)
	base := net.ParseIP(parts[0])
	bits, err := strconv.Atoi(parts[1])
	if err != nil || bits < 0 || bits > 32 {
		return false
	}

	ip4, base4 := ip.To4(), base.To4()
	if ip4 == nil || base4 == nil {
		return false
	}

	var mask uint32
	if bits > 0 {
		mask = ^uint32(0) << (32 - bits)
	}
	return binary.BigEndian.Uint32(ip4)&mask == binary.BigEndian.Uint32(base4)&mask
}

// matchesAny reports whether ip matches at least one entry. Unparseable
// entries are skipped.
func matchesAny(ip string, entries []string) bool {
	for _, e := range entries {
		if Matches(ip, e) {
			return true
		}
	}
	return false
}
