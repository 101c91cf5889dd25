package seedsync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxCacheSize bounds the size of a fetched cache.
const maxCacheSize = 64 << 20

// httpGetter performs HTTP requests. *http.Client implements it.
type httpGetter interface {
	Do(req *http.Request) (*http.Response, error)
}

// CheckCache fetches the cache published at sourceURL and compares it line by
// line with expected. A *VerifyError is returned if the fetch fails, the line
// counts differ or any line differs.
//
// The comparison is order sensitive while exports come in the random order of
// the candidate pool. A cache is only verified against the export it was
// created from.
func (m *Manager) CheckCache(ctx context.Context, expected []string,
	sourceURL string) error {

	if sourceURL == "" {
		return ErrNoTargetURL
	}

	remote, err := m.fetchLines(ctx, sourceURL)
	if err != nil {
		log.Debugf("Fetching published cache failed: %v", err)

		return &VerifyError{
			Kind:     ErrFetchFailed,
			URL:      sourceURL,
			Expected: len(expected),
			Err:      err,
		}
	}

	if len(remote) != len(expected) {
		log.Debugf("Local and published seed list differ in length: "+
			"local %d entries, remote %d entries", len(expected),
			len(remote))

		return &VerifyError{
			Kind:     ErrCountMismatch,
			URL:      sourceURL,
			Expected: len(expected),
			Actual:   len(remote),
		}
	}

	for i := range expected {
		if expected[i] != remote[i] {
			return &VerifyError{
				Kind:     ErrContentMismatch,
				URL:      sourceURL,
				Expected: len(expected),
				Actual:   len(remote),
				Line:     i,
			}
		}
	}

	return nil
}

// fetchLines downloads the document at sourceURL and splits it into lines.
// Trailing empty lines are dropped.
func (m *Manager) fetchLines(ctx context.Context, sourceURL string) ([]string,
	error) {

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, sourceURL, nil,
	)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCacheSize))
	if err != nil {
		return nil, err
	}

	return splitLines(string(body)), nil
}

// splitLines splits text at line feeds, removing a carriage return before
// each of them.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}
