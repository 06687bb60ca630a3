// Package inmemory keeps scenario results in memory and in a JSON file.
package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/and161185/bodyleak/model"
)

type MemStorage struct {
	results []*model.ScenarioResult
	mu      sync.RWMutex
}

func NewMemStorage() *MemStorage {
	return &MemStorage{}
}

func (store *MemStorage) Save(ctx context.Context, r *model.ScenarioResult) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	cp := *r
	store.results = append(store.results, &cp)
	return nil
}

func (store *MemStorage) GetAll(ctx context.Context) ([]*model.ScenarioResult, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	result := make([]*model.ScenarioResult, len(store.results))
	copy(result, store.results)
	return result, nil
}

func (store *MemStorage) SaveToFile(ctx context.Context, filePath string) error {
	results, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to get results: %w", err)
	}

	if len(results) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// LoadFromFile prepends the results saved by earlier runs. A missing file is not an error.
func (store *MemStorage) LoadFromFile(ctx context.Context, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	var results []*model.ScenarioResult
	if err := json.Unmarshal(data, &results); err != nil {
		return fmt.Errorf("failed to unmarshal results: %w", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	store.results = append(results, store.results...)
	return nil
}
