package seed

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// HashLength is the length of a seed hash. The same length is used for
	// every hash key exchanged within the overlay.
	HashLength = 12

	// LocalPeerName is the reserved name that always resolves to the local
	// node's own seed.
	LocalPeerName = "localpeer"

	// LastSeenLayout is the time layout of the LastSeen attribute. Times
	// are always expressed in UTC.
	LastSeenLayout = "20060102150405"
)

// Well-known attribute names.
const (
	KeyHash     = "Hash"
	KeyName     = "Name"
	KeyIP       = "IP"
	KeyPort     = "Port"
	KeyPeerType = "PeerType"
	KeyLastSeen = "LastSeen"
	KeyLCount   = "LCount"
	KeyICount   = "ICount"
	KeyISpeed   = "ISpeed"
	KeyUptime   = "Uptime"
	KeyVersion  = "Version"
	KeyUTC      = "UTC"
)

// PeerType is the role a peer declares for itself.
type PeerType string

const (
	// PeerTypeVirgin is a peer that has not yet been contacted by anyone.
	// Every node starts out as a virgin.
	PeerTypeVirgin PeerType = "virgin"

	// PeerTypeJunior is a peer that cannot be reached from the outside.
	PeerTypeJunior PeerType = "junior"

	// PeerTypeSenior is a peer that is reachable from the outside.
	PeerTypeSenior PeerType = "senior"

	// PeerTypePrincipal is a senior peer that also publishes a seed list.
	PeerTypePrincipal PeerType = "principal"
)

var (
	// SortFields are the attributes a tier can be enumerated by.
	SortFields = []string{KeyLCount, KeyICount, KeyUptime, KeyVersion,
		KeyLastSeen}

	// AccFields are the numeric attributes a tier keeps running sums for.
	AccFields = []string{KeyLCount, KeyICount, KeyISpeed}
)

var (
	errBadHash = errors.New("hash is not a valid seed hash")
	errNoIP    = errors.New("IP is missing")
	errBadIP   = errors.New("IP is not a valid address")
	errBadPort = errors.New("port is not a valid port number")
)

// Seed holds the identity of a single peer together with the attributes it
// advertised.
type Seed struct {
	// Hash is the peer's identifier and the key the seed is stored under.
	Hash string

	// Attrs are the advertised attributes of the peer. The hash is never
	// part of this map.
	Attrs map[string]string
}

// New creates a seed from a hash and an attribute map. The map is copied and
// any hash attribute inside of it is dropped.
func New(hash string, attrs map[string]string) *Seed {
	s := &Seed{
		Hash:  hash,
		Attrs: make(map[string]string, len(attrs)),
	}
	for k, v := range attrs {
		if k == KeyHash {
			continue
		}
		s.Attrs[k] = v
	}

	return s
}

// Copy returns a deep copy of the seed.
func (s *Seed) Copy() *Seed {
	return New(s.Hash, s.Attrs)
}

// Get returns the attribute stored under key, or def if it isn't set.
func (s *Seed) Get(key, def string) string {
	if v, ok := s.Attrs[key]; ok {
		return v
	}

	return def
}

// Put sets the attribute key to value.
func (s *Seed) Put(key, value string) {
	if s.Attrs == nil {
		s.Attrs = make(map[string]string)
	}
	s.Attrs[key] = value
}

// Int returns the attribute stored under key as an integer. Missing or
// malformed values yield zero.
func (s *Seed) Int(key string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s.Attrs[key]), 10, 64)
	if err != nil {
		return 0
	}

	return v
}

// Name returns the display name of the peer.
func (s *Seed) Name() string {
	return s.Get(KeyName, "")
}

// LowerName returns the lower-cased display name, the form names are matched
// in.
func (s *Seed) LowerName() string {
	return strings.ToLower(s.Name())
}

// PeerType returns the declared role of the peer.
func (s *Seed) PeerType() PeerType {
	return PeerType(s.Get(KeyPeerType, ""))
}

// Address returns the host:port network address of the peer, or the empty
// string if either part is unknown.
func (s *Seed) Address() string {
	ip, port := s.Get(KeyIP, ""), s.Get(KeyPort, "")
	if ip == "" || port == "" {
		return ""
	}

	return net.JoinHostPort(ip, port)
}

// LastSeen parses the LastSeen attribute. The second return value is false if
// the attribute is missing or not plausible.
func (s *Seed) LastSeen() (time.Time, bool) {
	v := s.Get(KeyLastSeen, "")
	if len(v) <= 10 {
		return time.Time{}, false
	}

	t, err := time.ParseInLocation(LastSeenLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// SetLastSeen records t as the time the peer was last seen.
func (s *Seed) SetLastSeen(t time.Time) {
	s.Put(KeyLastSeen, t.UTC().Format(LastSeenLayout))
}

// IsOnline reports whether the peer is reachable from the outside according
// to the last contact with it.
func (s *Seed) IsOnline() bool {
	switch s.PeerType() {
	case PeerTypeSenior, PeerTypePrincipal:
		return true
	}

	return false
}

// Validate checks that the seed is well formed enough to be contacted. A nil
// return value means the seed is proper.
func (s *Seed) Validate() error {
	if !ValidHash(s.Hash) {
		return fmt.Errorf("%w: %q", errBadHash, s.Hash)
	}

	ip := s.Get(KeyIP, "")
	if ip == "" {
		return errNoIP
	}
	if net.ParseIP(ip) == nil && !validHostname(ip) {
		return fmt.Errorf("%w: %q", errBadIP, ip)
	}

	port, err := strconv.Atoi(s.Get(KeyPort, ""))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: %q", errBadPort, s.Get(KeyPort, ""))
	}

	return nil
}

// IsProper reports whether the seed passes Validate.
func (s *Seed) IsProper() bool {
	return s.Validate() == nil
}

// String returns a short human readable description of the seed.
func (s *Seed) String() string {
	return fmt.Sprintf("%s(%s@%s)", s.Hash, s.Name(), s.Address())
}

// ValidHash reports whether hash has the length and alphabet of a seed hash.
func ValidHash(hash string) bool {
	if len(hash) != HashLength {
		return false
	}
	for i := 0; i < len(hash); i++ {
		if !isHashChar(hash[i]) {
			return false
		}
	}

	return true
}

// isHashChar reports whether c belongs to the enhanced base64 alphabet.
func isHashChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_':
		return true
	}

	return false
}

// validHostname is a loose syntactic check for DNS host names.
func validHostname(host string) bool {
	if len(host) == 0 || len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			ok := c == '-' || (c >= '0' && c <= '9') ||
				(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
			if !ok {
				return false
			}
		}
	}

	return true
}
