package seeddb

import (
	"net"
	"strings"

	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// HashDomain is the suffix of host names addressing a seed by its
	// hash.
	HashDomain = ".yacyh"

	// NameDomain is the suffix of host names addressing a seed by its
	// name.
	NameDomain = ".yacy"
)

// ResolverConfig holds what a Resolver needs besides the registry.
type ResolverConfig struct {
	// PublicAddr returns the public IP the local node was detected at. It
	// replaces the stored address of the local seed while the local node
	// isn't online.
	PublicAddr func() string

	// Port is the port the local node listens on.
	Port string
}

// Resolver maps the virtual host names <hash>.yacyh and <name>.yacy to the
// network address of the seed they refer to. A leading subdomain is kept and
// appended to the address as a path.
type Resolver struct {
	db  *DB
	cfg ResolverConfig
}

// NewResolver returns a Resolver backed by the registry.
func NewResolver(db *DB, cfg ResolverConfig) *Resolver {
	return &Resolver{db: db, cfg: cfg}
}

// Resolve returns the address the host name points to. None is returned for
// host names of other domains or seeds that aren't known.
func (r *Resolver) Resolve(host string) fn.Option[string] {
	switch {
	case strings.HasSuffix(host, HashDomain):
		return r.resolveHash(host)

	case strings.HasSuffix(host, NameDomain):
		return r.resolveName(host)

	default:
		return fn.None[string]()
	}
}

// resolveHash resolves a host name of the hash domain. Only the connected
// tier and the local seed are consulted.
func (r *Resolver) resolveHash(host string) fn.Option[string] {
	subdom, host := splitSubdomain(host, HashDomain)
	hash := strings.TrimSuffix(host, HashDomain)

	s := r.db.GetFrom(TierConnected, hash)
	if s.IsNone() {
		return fn.None[string]()
	}

	return withPath(s.UnsafeFromSome().Address(), subdom)
}

// resolveName resolves a host name of the name domain.
func (r *Resolver) resolveName(host string) fn.Option[string] {
	subdom, host := splitSubdomain(host, NameDomain)
	name := strings.ToLower(strings.TrimSuffix(host, NameDomain))

	found := r.db.LookupByName(name)
	if found.IsNone() {
		return fn.None[string]()
	}

	s := found.UnsafeFromSome()
	if s == r.db.LocalSeed() && !s.IsOnline() && r.cfg.PublicAddr != nil {
		addr := net.JoinHostPort(r.cfg.PublicAddr(), r.cfg.Port)
		return withPath(addr, subdom)
	}

	return withPath(s.Address(), subdom)
}

// splitSubdomain splits off everything before the first dot, unless that dot
// starts the domain suffix.
func splitSubdomain(host, suffix string) (string, string) {
	p := strings.IndexByte(host, '.')
	if p <= 0 || p == len(host)-len(suffix) {
		return "", host
	}

	return host[:p], host[p+1:]
}

// withPath appends the subdomain to the address.
func withPath(addr, subdom string) fn.Option[string] {
	switch {
	case addr == "":
		return fn.None[string]()

	case subdom == "":
		return fn.Some(addr)

	default:
		return fn.Some(addr + "/" + subdom)
	}
}
