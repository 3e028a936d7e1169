package services

import (
	"context"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/logging"
	"marketplace-service/internal/repository"

	"github.com/go-logr/logr"
)

type CartService struct {
	store  repository.Store
	logger logr.Logger
}

func NewCartService(store repository.Store) *CartService {
	return &CartService{store: store, logger: logging.New("cart")}
}

// GetCart returns the user's cart, or an empty unsaved one.
func (s *CartService) GetCart(ctx context.Context, userID uint64) (*domain.Cart, error) {
	cart, err := s.store.Carts().FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return domain.NewCart(userID), nil
	}
	return cart, nil
}

// AddItem adds quantity of a content at its current catalog price. A line
// that already exists keeps its original price.
func (s *CartService) AddItem(ctx context.Context, userID, contentID uint64, quantity int) (*domain.Cart, error) {
	var out *domain.Cart
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		content, err := tx.Catalog().FindContent(ctx, contentID)
		if err != nil {
			return err
		}
		if content == nil || !content.IsPublished {
			return domain.ErrContentNotFound.WithDetail("content %d", contentID)
		}

		cart, err := tx.Carts().FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		if cart == nil {
			cart = domain.NewCart(userID)
		}
		if err := cart.AddItemOrIncrement(contentID, content.Price, quantity); err != nil {
			return err
		}
		if err := tx.Carts().Save(ctx, cart); err != nil {
			return err
		}
		out = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.V(1).Info("item added", "userId", userID, "contentId", contentID, "quantity", quantity)
	return out, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, contentID uint64) (*domain.Cart, error) {
	var out *domain.Cart
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		if cart == nil {
			return domain.ErrCartNotFound
		}
		if err := cart.RemoveItem(contentID); err != nil {
			return err
		}
		out = cart
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CartService) Clear(ctx context.Context, userID uint64) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().FindByUser(ctx, userID)
		if err != nil || cart == nil {
			return err
		}
		cart.Clear()
		return tx.Carts().Save(ctx, cart)
	})
}
