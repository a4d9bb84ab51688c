// Package preferences persists the token list grouping and sorting choice of each wallet.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"currency_status/internal/app/port"
	"currency_status/internal/domain/entity"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type preferencesFile struct {
	Wallets map[string]entity.TokenListSorting `yaml:"wallets"`
}

// FileStore implements port.TokenListSortingStore over a YAML file.
// Wallets without a stored preference are ungrouped and unsorted.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	values   map[entity.WalletID]entity.TokenListSorting
	logger   *zap.Logger
}

// NewFileStore loads filePath. A missing file is an empty store and is created on the first Set.
func NewFileStore(filePath string, logger *zap.Logger) (*FileStore, error) {
	s := &FileStore{
		filePath: filePath,
		values:   make(map[entity.WalletID]entity.TokenListSorting),
		logger:   logger.Named("PreferencesStore"),
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("Preferences file not found, starting empty", zap.String("path", filePath))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences file %s: %w", filePath, err)
	}

	var file preferencesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse preferences file %s: %w", filePath, err)
	}
	for walletID, sorting := range file.Wallets {
		s.values[entity.WalletID(walletID)] = sorting
	}
	s.logger.Info("Preferences loaded", zap.Int("wallets", len(s.values)), zap.String("path", filePath))
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, walletID entity.WalletID) (entity.TokenListSorting, error) {
	if err := ctx.Err(); err != nil {
		return entity.TokenListSorting{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[walletID], nil
}

// Set stores sorting and rewrites the file. The in-memory value is kept only when the write succeeds.
func (s *FileStore) Set(ctx context.Context, walletID entity.WalletID, sorting entity.TokenListSorting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.values[walletID]
	s.values[walletID] = sorting
	if err := s.persist(); err != nil {
		if existed {
			s.values[walletID] = previous
		} else {
			delete(s.values, walletID)
		}
		return err
	}
	s.logger.Debug("Preference stored",
		zap.String("wallet", string(walletID)),
		zap.Bool("grouped", sorting.IsGrouped),
		zap.Bool("sortedByBalance", sorting.IsSortedByBalance))
	return nil
}

func (s *FileStore) persist() error {
	file := preferencesFile{Wallets: make(map[string]entity.TokenListSorting, len(s.values))}
	for walletID, sorting := range s.values {
		file.Wallets[string(walletID)] = sorting
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	if dir := filepath.Dir(s.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preferences directory %s: %w", dir, err)
		}
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("failed to replace preferences file %s: %w", s.filePath, err)
	}
	return nil
}

var _ port.TokenListSortingStore = (*FileStore)(nil)
