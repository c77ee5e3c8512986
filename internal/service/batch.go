package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PrithiviPM2580/coaching-management-backend/internal/model"
)

type BatchStore interface {
	CreateBatch(ctx context.Context, batch model.Batch) error
	ListBatches(ctx context.Context) ([]model.Batch, error)
	GetBatch(ctx context.Context, id string) (model.Batch, bool, error)
	UpdateBatch(ctx context.Context, id string, update BatchUpdate) (model.Batch, bool, error)
	DeleteBatch(ctx context.Context, id string) (int64, error)
}

// BatchUpdate carries optional fields for a partial batch update.
type BatchUpdate struct {
	BatchName   *string
	Subject     *string
	Teacher     *string
	Timing      *string
	MonthlyFees *int64
}

type Batches struct {
	store BatchStore
}

func NewBatches(store BatchStore) *Batches {
	return &Batches{store: store}
}

type CreateBatchInput struct {
	BatchName   string
	Subject     string
	Teacher     string
	Timing      string
	MonthlyFees int64
}

func (b *Batches) Create(ctx context.Context, in CreateBatchInput) (model.Batch, error) {
	if in.BatchName == "" || in.Subject == "" || in.Teacher == "" || in.Timing == "" {
		return model.Batch{}, ErrMissingFields
	}
	if in.MonthlyFees <= 0 {
		return model.Batch{}, ErrInvalidAmount
	}

	now := time.Now().UTC()
	batch := model.Batch{
		ID:          uuid.NewString(),
		BatchName:   in.BatchName,
		Subject:     in.Subject,
		Teacher:     in.Teacher,
		Timing:      in.Timing,
		MonthlyFees: in.MonthlyFees,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.store.CreateBatch(ctx, batch); err != nil {
		return model.Batch{}, fmt.Errorf("create batch: %w", err)
	}
	return batch, nil
}

func (b *Batches) List(ctx context.Context) ([]model.Batch, error) {
	batches, err := b.store.ListBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

func (b *Batches) Get(ctx context.Context, id string) (model.Batch, error) {
	if id == "" {
		return model.Batch{}, ErrMissingFields
	}
	batch, found, err := b.store.GetBatch(ctx, id)
	if err != nil {
		return model.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	if !found {
		return model.Batch{}, ErrBatchNotFound
	}
	return batch, nil
}

func (b *Batches) Update(ctx context.Context, id string, update BatchUpdate) (model.Batch, error) {
	if id == "" {
		return model.Batch{}, ErrMissingFields
	}
	if update.MonthlyFees != nil && *update.MonthlyFees <= 0 {
		return model.Batch{}, ErrInvalidAmount
	}
	batch, found, err := b.store.UpdateBatch(ctx, id, update)
	if err != nil {
		return model.Batch{}, fmt.Errorf("update batch: %w", err)
	}
	if !found {
		return model.Batch{}, ErrBatchNotFound
	}
	return batch, nil
}

func (b *Batches) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingFields
	}
	deleted, err := b.store.DeleteBatch(ctx, id)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if deleted == 0 {
		return ErrBatchNotFound
	}
	return nil
}
