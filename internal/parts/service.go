package parts

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/Vitorhlem/TruCar/internal/inventory"
	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Store exposes part template persistence.
type Store interface {
	Insert(ctx context.Context, q db.Executor, part Part) (Part, error)
	Update(ctx context.Context, q db.Executor, part Part) error
	Get(ctx context.Context, q db.Executor, partID, orgID int64) (Part, error)
	List(ctx context.Context, q db.Executor, filter Filter) ([]Part, int, error)
	CountAvailable(ctx context.Context, q db.Executor, partID, orgID int64) (int, error)
	ListLowStock(ctx context.Context, q db.Executor, orgID int64) ([]Part, error)
}

// ItemCreator is the slice of the item registry the catalog needs for
// initial-quantity loads.
type ItemCreator interface {
	CreateItems(ctx context.Context, q db.Executor, in inventory.BatchInput) ([]inventory.Item, error)
}

// Service coordinates the part catalog.
type Service struct {
	store Store
	items ItemCreator
	stock singleflight.Group
}

// NewService builds Service.
func NewService(store Store, items ItemCreator) *Service {
	return &Service{store: store, items: items}
}

// Create inserts a part template and, when an initial quantity is given,
// loads that many serialized items in the same transaction.
func (s *Service) Create(ctx context.Context, q db.Executor, in CreateInput) (Part, error) {
	if in.Name == "" {
		return Part{}, fmt.Errorf("parts: name required: %w", shared.ErrValidation)
	}
	if in.Value.IsNegative() {
		return Part{}, fmt.Errorf("parts: value must not be negative: %w", shared.ErrValidation)
	}
	part, err := s.store.Insert(ctx, q, Part{
		OrganizationID: in.OrganizationID,
		Name:           in.Name,
		PartNumber:     in.PartNumber,
		Brand:          in.Brand,
		Category:       in.Category,
		Value:          in.Value,
		MinStock:       in.MinStock,
		Location:       in.Location,
		Notes:          in.Notes,
		PhotoURL:       in.PhotoURL,
	})
	if err != nil {
		return Part{}, err
	}

	if in.InitialQuantity > 0 {
		items, err := s.items.CreateItems(ctx, q, inventory.BatchInput{
			PartID:         part.ID,
			OrganizationID: in.OrganizationID,
			Quantity:       in.InitialQuantity,
			ActorID:        in.ActorID,
			Note:           fmt.Sprintf("Carga inicial de %d itens no sistema.", in.InitialQuantity),
		})
		if err != nil {
			return Part{}, err
		}
		part.Stock = len(items)
	}
	return part, nil
}

// Update mutates descriptive fields of a part template.
func (s *Service) Update(ctx context.Context, q db.Executor, partID, orgID int64, in UpdateInput) (Part, error) {
	part, err := s.store.Get(ctx, q, partID, orgID)
	if err != nil {
		return Part{}, err
	}
	if in.Name != "" {
		part.Name = in.Name
	}
	if in.Value.IsNegative() {
		return Part{}, fmt.Errorf("parts: value must not be negative: %w", shared.ErrValidation)
	}
	part.PartNumber = in.PartNumber
	part.Brand = in.Brand
	part.Category = in.Category
	part.Value = in.Value
	part.MinStock = in.MinStock
	part.Location = in.Location
	part.Notes = in.Notes
	part.PhotoURL = in.PhotoURL
	if err := s.store.Update(ctx, q, part); err != nil {
		return Part{}, err
	}
	return part, nil
}

// Get fetches one part with its live stock count.
func (s *Service) Get(ctx context.Context, q db.Executor, partID, orgID int64) (Part, error) {
	part, err := s.store.Get(ctx, q, partID, orgID)
	if err != nil {
		return Part{}, err
	}
	part.Stock, err = s.store.CountAvailable(ctx, q, partID, orgID)
	if err != nil {
		return Part{}, err
	}
	return part, nil
}

// List lists parts with stock counts and the unpaged total.
func (s *Service) List(ctx context.Context, q db.Executor, filter Filter) ([]Part, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.store.List(ctx, q, filter)
}

// AvailableStock counts the AVAILABLE items of a template. Concurrent reads
// for the same part collapse onto one query.
func (s *Service) AvailableStock(ctx context.Context, q db.Executor, partID, orgID int64) (int, error) {
	key := strconv.FormatInt(orgID, 10) + ":" + strconv.FormatInt(partID, 10)
	v, err, _ := s.stock.Do(key, func() (any, error) {
		return s.store.CountAvailable(ctx, q, partID, orgID)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// LowStock lists parts whose available count sits at or below min stock.
func (s *Service) LowStock(ctx context.Context, q db.Executor, orgID int64) ([]Part, error) {
	return s.store.ListLowStock(ctx, q, orgID)
}
