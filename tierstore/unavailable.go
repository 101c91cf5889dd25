package tierstore

import "fmt"

// unavailableStore stands in for a tier whose store could not be opened.
// Every call fails with ErrCorrupt so the owner retries opening the tier on
// the next access.
type unavailableStore struct {
	err error
}

// NewUnavailable returns a Store that fails every operation with an error
// wrapping both ErrCorrupt and cause.
func NewUnavailable(cause error) Store {
	return &unavailableStore{err: fmt.Errorf("%w: %w", ErrCorrupt, cause)}
}

func (u *unavailableStore) Get(string) (map[string]string, error) {
	return nil, u.err
}

func (u *unavailableStore) Put(string, map[string]string) error {
	return u.err
}

func (u *unavailableStore) Delete(string) error {
	return u.err
}

func (u *unavailableStore) Size() int {
	return 0
}

func (u *unavailableStore) Sum(string) int64 {
	return 0
}

func (u *unavailableStore) NextKey(string, bool) (string, error) {
	return "", u.err
}

func (u *unavailableStore) Keys() ([]string, error) {
	return nil, u.err
}

func (u *unavailableStore) SortedKeys(string, bool) ([]string, error) {
	return nil, u.err
}

func (u *unavailableStore) Close() error {
	return nil
}

func (u *unavailableStore) Destroy() error {
	return nil
}
