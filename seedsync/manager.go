package seedsync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/overlaynet/seeddb/seed"
)

const (
	// LineSeparator terminates every line of a cache file.
	LineSeparator = "\r\n"

	// DefaultTimeout bounds the fetch of a published cache.
	DefaultTimeout = 10 * time.Second
)

// Registry is the part of the seed registry the manager exports from.
type Registry interface {
	// LocalSeed returns the identity of the local node.
	LocalSeed() *seed.Seed

	// DrainCycle returns every connected seed once, in the random order
	// of one full candidate cycle.
	DrainCycle() []*seed.Seed
}

// Uploader transmits an exported cache file to the location it is published
// at.
type Uploader interface {
	// Upload publishes the file at path and returns a short report of
	// what was done.
	Upload(ctx context.Context, path string) (string, error)
}

// Config holds the settings of a Manager.
type Config struct {
	// Registry is exported from.
	Registry Registry

	// Timeout bounds the fetch of a published cache. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	// Proxy optionally routes fetches through a forward proxy, given as
	// an http://, https:// or socks5:// URL.
	Proxy string

	// Encoding is used to serialize the exported seeds.
	Encoding seed.Encoding

	// TempDir holds the temporary export made for an upload. Defaults to
	// the system temp directory.
	TempDir string
}

// Manager exports the connected tier of a registry into a cache file,
// publishes it and verifies the publication by fetching it back.
type Manager struct {
	cfg    Config
	client httpGetter
}

// New creates a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := newHTTPClient(cfg.Timeout, cfg.Proxy)
	if err != nil {
		return nil, err
	}

	return &Manager{cfg: cfg, client: client}, nil
}

// WriteCache writes the local seed, if includeSelf is set, followed by every
// connected seed to w, one line per seed. The connected seeds are one full
// candidate cycle of the registry, so their order differs between calls.
// The written lines are returned without their separator.
func (m *Manager) WriteCache(w io.Writer, includeSelf bool) ([]string,
	error) {

	reg := m.cfg.Registry
	cycle := reg.DrainCycle()

	lines := make([]string, 0, len(cycle)+1)
	if includeSelf {
		line, err := reg.LocalSeed().EncodeAs(m.cfg.Encoding)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	for _, s := range cycle {
		line, err := s.EncodeAs(m.cfg.Encoding)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := bw.WriteString(line + LineSeparator); err != nil {
			return nil, err
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}

	return lines, nil
}

// StoreCache writes the cache file at path. See WriteCache.
func (m *Manager) StoreCache(path string, includeSelf bool) ([]string,
	error) {

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	lines, err := m.WriteCache(f, includeSelf)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("unable to store cache %v: %w", path, err)
	}

	log.Debugf("Stored %d seeds in %v", len(lines), path)

	return lines, nil
}

// UploadCache exports the registry including the local seed into a
// temporary file, hands it to the uploader and verifies that the cache
// fetched back from targetURL matches the export. The temporary file is
// removed in every case. The report of the uploader is returned on success.
func (m *Manager) UploadCache(ctx context.Context, uploader Uploader,
	targetURL string) (string, error) {

	if targetURL == "" {
		return "", ErrNoTargetURL
	}

	f, err := os.CreateTemp(m.cfg.TempDir, "seedlist-*.txt")
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer os.Remove(path)

	log.Debugf("Storing seed list into temp file %v", path)

	lines, err := m.WriteCache(f, true)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("unable to store cache: %w", err)
	}

	log.Debugf("Uploading seed list with %d entries", len(lines))

	report, err := uploader.Upload(ctx, path)
	if err != nil {
		return "", fmt.Errorf("unable to upload cache: %w", err)
	}

	if err := m.CheckCache(ctx, lines, targetURL); err != nil {
		return "", err
	}

	log.Infof("Published %d seeds, verified at %v", len(lines), targetURL)

	return report + "UPLOAD CHECK - Success: the result vectors are " +
		"equal" + LineSeparator, nil
}

// CopyCache exports the registry including the local seed to path, for a
// web server to publish, and verifies the publication at targetURL. The
// outcome of the verification is reported in the returned status, the error
// is only set if the local export failed.
func (m *Manager) CopyCache(ctx context.Context, path,
	targetURL string) (string, error) {

	if targetURL == "" {
		return "COPY - Error: URL not given", nil
	}

	lines, err := m.StoreCache(path, true)
	if err != nil {
		return "", err
	}

	err = m.CheckCache(ctx, lines, targetURL)
	switch {
	case err == nil:
		return "COPY CHECK - Success: the result vectors are equal" +
			LineSeparator, nil

	case errors.Is(err, ErrFetchFailed):
		return "COPY CHECK - Error: IO problem " + err.Error() +
			LineSeparator, nil

	default:
		log.Debugf("Copied cache differs: %v", err)

		return "COPY CHECK - Error: the result vector is different" +
			LineSeparator, nil
	}
}
