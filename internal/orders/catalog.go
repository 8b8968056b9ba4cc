package orders

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var maxPrice = decimal.NewFromInt(100_000_000) // NUMERIC(10,2)

// ProductService: katalog publik + CRUD admin.
type ProductService struct {
	Stores Stores
	Tx     TxManager
	Images ImageURL
	Log    log.FieldLogger
}

func NewProductService(stores Stores, tx TxManager, images ImageURL, logger log.FieldLogger) *ProductService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ProductService{Stores: stores, Tx: tx, Images: images, Log: logger}
}

func (s *ProductService) ListProducts(ctx context.Context) ([]Product, error) {
	ps, err := s.Stores.Products.ListProducts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	for i := range ps {
		ps[i].Image = s.Images.Resolve(ps[i].Image)
	}
	return ps, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := s.Stores.Products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Image = s.Images.Resolve(p.Image)
	return p, nil
}

// ProductPatch: field nil berarti tidak diubah.
type ProductPatch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Image       *string          `json:"image"`
}

func validatePrice(p decimal.Decimal) error {
	switch {
	case p.IsNegative():
		return invalidInput("price must not be negative")
	case !p.Equal(p.Round(2)):
		return invalidInput("price must have at most 2 decimals")
	case p.GreaterThanOrEqual(maxPrice):
		return invalidInput("price too large")
	}
	return nil
}

func (s *ProductService) CreateProduct(ctx context.Context, np NewProduct) (*Product, error) {
	np.Title = strings.TrimSpace(np.Title)
	if np.Title == "" {
		return nil, invalidInput("title is required")
	}
	if err := validatePrice(np.Price); err != nil {
		return nil, err
	}
	if np.Stock < 0 {
		return nil, invalidInput("stock must not be negative")
	}
	id, err := s.Stores.Products.InsertProduct(ctx, np)
	if err != nil {
		return nil, errors.Wrap(err, "insert product")
	}
	s.Log.WithFields(log.Fields{"product_id": id, "stock": np.Stock}).Info("product created")
	return s.GetProduct(ctx, id)
}

// UpdateProduct applies a partial update; read and write share one transaction.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*Product, error) {
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, invalidInput("title must not be empty")
		}
		patch.Title = &t
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
	}
	err := s.Tx.WithTransaction(ctx, func(ctx context.Context, tx Stores) error {
		p, err := tx.Products.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			p.Title = *patch.Title
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Image != nil {
			p.Image = *patch.Image
		}
		return tx.Products.UpdateProduct(ctx, *p)
	})
	if err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(err, "update product")
	}
	s.Log.WithField("product_id", id).Info("product updated")
	return s.GetProduct(ctx, id)
}

// SetStock menimpa stok (stock opname).
func (s *ProductService) SetStock(ctx context.Context, id int64, stock int) (*Product, error) {
	if stock < 0 {
		return nil, invalidInput("stock must not be negative")
	}
	if err := s.Stores.Products.SetStock(ctx, id, stock); err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(err, "set stock")
	}
	s.Log.WithFields(log.Fields{"product_id": id, "stock": stock}).Info("stock set")
	return s.GetProduct(ctx, id)
}

// Restock menambah stok secara atomik, aman dipanggil bersamaan dengan checkout.
func (s *ProductService) Restock(ctx context.Context, id int64, qty int) (*Product, error) {
	if qty <= 0 {
		return nil, invalidInput("quantity must be positive")
	}
	if err := s.Stores.Products.IncrementStock(ctx, id, qty); err != nil {
		if KindOf(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(err, "restock")
	}
	s.Log.WithFields(log.Fields{"product_id": id, "qty": qty}).Info("product restocked")
	return s.GetProduct(ctx, id)
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	ok, err := s.Stores.Products.DeleteProduct(ctx, id)
	if err != nil {
		if KindOf(err) != "" {
			return err
		}
		return errors.Wrap(err, "delete product")
	}
	if !ok {
		return NotFound("product")
	}
	s.Log.WithField("product_id", id).Info("product deleted")
	return nil
}
