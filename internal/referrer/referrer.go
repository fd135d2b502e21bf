// Package referrer persists the referrer credited on deposits.
package referrer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultFile is used when no path is configured.
const DefaultFile = "ifo_referrer.json"

// None is the "no referrer" sentinel passed to deposit.
var None = common.Address{}

type record struct {
	Referrer string `json:"referrer"`
}

// Store is a one-value JSON file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	if strings.TrimSpace(path) == "" {
		path = DefaultFile
	}
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Get returns the stored referrer, or None when the file is missing,
// unreadable or holds no valid address.
func (s *Store) Get() common.Address {
	f, err := os.Open(s.path)
	if err != nil {
		return None
	}
	defer f.Close()
	var r record
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return None
	}
	if !common.IsHexAddress(r.Referrer) {
		return None
	}
	return common.HexToAddress(r.Referrer)
}

// Set stores addr. Passing an empty string clears the referrer.
func (s *Store) Set(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("referrer: %w", err)
		}
		return nil
	}
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("referrer: %q is not an address", addr)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("referrer: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := writeRecord(tmp, record{Referrer: common.HexToAddress(addr).Hex()}); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("referrer: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("referrer: %w", err)
	}
	return nil
}

func writeRecord(path string, r record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
