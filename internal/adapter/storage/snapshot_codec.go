package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/inventory/internal/core/domain"
)

var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// snapshotEnvelope is the on-disk and in-Redis shape of a product snapshot.
type snapshotEnvelope struct {
	ID       uuid.UUID                 `json:"id"`
	TakenAt  time.Time                 `json:"takenAt"`
	Products map[string]domain.Product `json:"products"`
}

func encodeSnapshot(products map[string]domain.Product, takenAt time.Time) ([]byte, error) {
	if products == nil {
		products = map[string]domain.Product{}
	}
	data, err := json.Marshal(snapshotEnvelope{
		ID:       uuid.New(),
		TakenAt:  takenAt.UTC(),
		Products: products,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (snapshotEnvelope, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return snapshotEnvelope{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if env.Products == nil {
		return snapshotEnvelope{}, fmt.Errorf("%w: no product index", ErrCorruptSnapshot)
	}
	return env, nil
}
