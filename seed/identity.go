package seed

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// NewHash returns a fresh random seed hash.
func NewHash() (string, error) {
	// Nine random bytes encode to exactly HashLength characters of the
	// URL safe base64 alphabet.
	var raw [HashLength * 3 / 4]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewLocal generates a new identity for the local node.
func NewLocal(name string, now time.Time) (*Seed, error) {
	hash, err := NewHash()
	if err != nil {
		return nil, fmt.Errorf("unable to generate seed hash: %w", err)
	}

	s := New(hash, map[string]string{
		KeyName:     name,
		KeyPeerType: string(PeerTypeVirgin),
		KeyLCount:   "0",
		KeyICount:   "0",
		KeyISpeed:   "0",
		KeyUptime:   "0",
		KeyUTC:      "+0000",
	})
	s.SetLastSeen(now)

	return s, nil
}

// Load reads the seed stored in the identity file at path.
func Load(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		return Decode(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return nil, ErrEmptyIdentity
}

// Save writes the seed to the identity file at path, creating its directory
// if needed. A partially written file is removed.
func (s *Seed) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	return fn.WriteFileRemove(path, []byte(s.Encode()+"\n"), 0600)
}

// LoadOrCreate loads the identity stored at path. If the file is missing or
// empty a new identity is generated and saved there. The second return value
// reports whether a new identity was created.
func LoadOrCreate(path, name string, now time.Time) (*Seed, bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Size() > 0:
		s, err := Load(path)
		if err == nil {
			log.Debugf("Loaded identity %v from %v", s.Hash, path)
			return s, false, nil
		}
		if !errors.Is(err, ErrEmptyIdentity) {
			return nil, false, fmt.Errorf("unable to load "+
				"identity %v: %w", path, err)
		}

	case err != nil && !errors.Is(err, os.ErrNotExist):
		return nil, false, err
	}

	s, err := NewLocal(name, now)
	if err != nil {
		return nil, false, err
	}
	if err := s.Save(path); err != nil {
		return nil, false, fmt.Errorf("unable to save identity "+
			"%v: %w", path, err)
	}

	log.Infof("Created new identity %v in %v", s.Hash, path)

	return s, true, nil
}
