package orders

import (
	"context"

	"github.com/pkg/errors"
)

type CartService struct {
	Stores Stores
	Images ImageURL
}

func NewCartService(stores Stores, images ImageURL) *CartService {
	return &CartService{Stores: stores, Images: images}
}

func (s *CartService) ListCart(ctx context.Context, userID int64) ([]CartLine, error) {
	lines, err := s.Stores.Carts.ListLinesWithProductInfo(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart")
	}
	for i := range lines {
		lines[i].Image = s.Images.Resolve(lines[i].Image)
	}
	return lines, nil
}

// AddToCart menambah qty ke baris yang sudah ada (atau membuat baris baru).
// Total qty hasil merge tidak boleh melebihi stok.
func (s *CartService) AddToCart(ctx context.Context, userID, productID int64, qty int) (*CartLine, error) {
	if qty <= 0 {
		return nil, invalidInput("quantity must be positive")
	}
	p, err := s.Stores.Products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	existing, err := s.Stores.Carts.GetLine(ctx, userID, productID)
	if err != nil && KindOf(err) != KindNotFound {
		return nil, err
	}
	newQty := qty
	if existing != nil {
		newQty += existing.Quantity
	}
	if newQty > p.Stock {
		return nil, insufficientStock(CartLine{ProductID: p.ID, Title: p.Title})
	}
	if err := s.Stores.Carts.UpsertLine(ctx, userID, productID, newQty); err != nil {
		return nil, errors.Wrap(err, "upsert cart line")
	}
	return s.line(ctx, userID, productID)
}

func (s *CartService) UpdateCartLine(ctx context.Context, userID, productID int64, qty int) (*CartLine, error) {
	if qty <= 0 {
		return nil, invalidInput("quantity must be positive")
	}
	existing, err := s.Stores.Carts.GetLine(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if qty > existing.Stock {
		return nil, insufficientStock(*existing)
	}
	if err := s.Stores.Carts.UpsertLine(ctx, userID, productID, qty); err != nil {
		return nil, errors.Wrap(err, "update cart line")
	}
	return s.line(ctx, userID, productID)
}

func (s *CartService) RemoveCartLine(ctx context.Context, userID, productID int64) error {
	ok, err := s.Stores.Carts.DeleteLine(ctx, userID, productID)
	if err != nil {
		return errors.Wrap(err, "delete cart line")
	}
	if !ok {
		return NotFound("cart item")
	}
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID int64) error {
	return errors.Wrap(s.Stores.Carts.DeleteAllLines(ctx, userID), "clear cart")
}

func (s *CartService) line(ctx context.Context, userID, productID int64) (*CartLine, error) {
	l, err := s.Stores.Carts.GetLine(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	l.Image = s.Images.Resolve(l.Image)
	return l, nil
}
