package seeddb

import (
	"strconv"
	"time"

	"github.com/overlaynet/seeddb/seed"
)

// IdentityConfig describes how the local seed is loaded and presented to
// other peers.
type IdentityConfig struct {
	// Path is the identity file.
	Path string

	// Name is the name given to a newly generated identity.
	Name string

	// Port is the port the local node listens on.
	Port int

	// PortForwarding announces ForwardHost and ForwardPort instead of the
	// local listen port.
	PortForwarding bool

	// ForwardHost is the host that forwards connections to the node.
	ForwardHost string

	// ForwardPort is the port on ForwardHost.
	ForwardPort int
}

// LoadIdentity loads the local seed from its identity file, creating a new one
// if the file is missing or empty, and applies the network settings. The
// local node always starts out as a virgin peer.
func LoadIdentity(cfg IdentityConfig, now time.Time) (*seed.Seed, error) {
	s, created, err := seed.LoadOrCreate(cfg.Path, cfg.Name, now)
	if err != nil {
		return nil, err
	}
	if created {
		log.Infof("Generated new local identity %s", s.Hash)
	}

	if cfg.PortForwarding {
		s.Put(seed.KeyIP, cfg.ForwardHost)
		s.Put(seed.KeyPort, strconv.Itoa(cfg.ForwardPort))
	} else {
		s.Put(seed.KeyIP, "")
		s.Put(seed.KeyPort, strconv.Itoa(cfg.Port))
	}
	s.Put(seed.KeyPeerType, string(seed.PeerTypeVirgin))

	return s, nil
}
