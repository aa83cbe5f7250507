package state

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wanwatch/internal/types"

	"go.uber.org/zap"
)

// Store owns the persisted address state and the update-notified mark.
// Nothing else writes these files.
type Store struct {
	stateFile string
	markFile  string
	logger    *zap.Logger
}

// New creates a new state store
func New(stateFile, markFile string, logger *zap.Logger) *Store {
	return &Store{
		stateFile: stateFile,
		markFile:  markFile,
		logger:    logger,
	}
}

// Load returns the last persisted address pair. A missing, legacy or
// corrupt file never fails the caller: missing and corrupt content both
// load as the empty pair (first run), a legacy bare-string file is
// migrated transparently.
func (s *Store) Load() types.AddressPair {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read state file, treating as first run",
				zap.String("file", s.stateFile),
				zap.Error(err))
		}
		return types.AddressPair{}
	}

	// Ordered parse attempts: structured record, then legacy bare string.
	if pair, ok := parseRecord(data); ok {
		return pair
	}
	if pair, ok := parseLegacy(data); ok {
		s.logger.Info("Migrated legacy state file format",
			zap.String("file", s.stateFile))
		return pair
	}

	s.logger.Warn("Unparseable state file, treating as first run",
		zap.String("file", s.stateFile))
	return types.AddressPair{}
}

// parseRecord tries the structured JSON record format.
func parseRecord(data []byte) (types.AddressPair, bool) {
	var rec types.PersistedState
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.AddressPair{}, false
	}
	return types.AddressPair{IPv4: rec.IPv4, IPv6: rec.IPv6}, true
}

// parseLegacy tries the original single-line format: a bare IPv4 address.
func parseLegacy(data []byte) (types.AddressPair, bool) {
	s := strings.TrimSpace(string(data))
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return types.AddressPair{}, false
	}
	return types.AddressPair{IPv4: s}, true
}

// Save overwrites the structured record with both fields and a fresh
// timestamp. A write failure is surfaced: losing the new state would
// cause duplicate notifications on every following cycle.
func (s *Store) Save(pair types.AddressPair) error {
	rec := types.PersistedState{
		IPv4:        pair.IPv4,
		IPv6:        pair.IPv6,
		LastUpdated: time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := writeFile(s.stateFile, data); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// LoadUpdateMark returns the last version announced to the operator,
// or empty when none was recorded.
func (s *Store) LoadUpdateMark() string {
	data, err := os.ReadFile(s.markFile)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read update mark file",
				zap.String("file", s.markFile),
				zap.Error(err))
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveUpdateMark records version as already announced.
func (s *Store) SaveUpdateMark(version string) error {
	if err := writeFile(s.markFile, []byte(version)); err != nil {
		return fmt.Errorf("failed to write update mark file: %w", err)
	}
	return nil
}

// writeFile creates the containing directory and overwrites the file.
func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0600)
}
