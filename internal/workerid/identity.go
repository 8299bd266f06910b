package workerid

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultDirName is the coordination directory created under the user's home.
const DefaultDirName = ".idworkers"

const fallbackHostAddress = "127.0.0.1"

// DefaultDir returns $HOME/.idworkers.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: resolve home directory: %v", ErrDirUnusable, err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// HostAddress returns the first non-loopback IPv4 address of this host, or
// 127.0.0.1 when there is none.
func HostAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return fallbackHostAddress
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return fallbackHostAddress
}

// Principal returns the current OS user name, made safe for file names.
func Principal() string {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = os.Getenv("USERNAME")
	}
	if name == "" {
		return "unknown"
	}
	return sanitize(name)
}

// sanitize replaces every byte outside [A-Za-z0-9_-] with an underscore.
// Dots are replaced too since they separate the fields of a resource name.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// IPU returns the host.principal identity sent to the coordinator.
func IPU(host, principal string) string {
	return host + "." + principal
}

// ResourceName returns the claim file name for id,
// e.g. 10.0.0.1.alice.lock.0112.
func ResourceName(host, principal string, id int64) string {
	return fmt.Sprintf("%s.lock.%04d", IPU(host, principal), id)
}

// parseResourceName extracts the worker id from a claim file name belonging
// to prefix. Only exactly four decimal digits are accepted.
func parseResourceName(name, prefix string) (int64, bool) {
	suffix, ok := strings.CutPrefix(name, prefix)
	if !ok || len(suffix) != 4 {
		return 0, false
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// addressWorkerID folds an IPv4 address into the worker id space.
func addressWorkerID(host string, maxWorkerID int64) (int64, bool) {
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return 0, false
	}
	return int64(binary.BigEndian.Uint32(ip)) & maxWorkerID, true
}
