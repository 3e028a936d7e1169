package mysql

import (
	"context"

	"marketplace-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cartRepo struct {
	db *gorm.DB
}

func (r *cartRepo) FindByUser(ctx context.Context, userID uint64) (*domain.Cart, error) {
	var c domain.Cart
	q := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("added_at ASC") }).
		Where("user_id = ?", userID)
	ok, err := first(q, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (r *cartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	db := r.db.WithContext(ctx)
	if cart.ID == 0 {
		if err := db.Omit(clause.Associations).Create(cart).Error; err != nil {
			return err
		}
	} else if err := db.Omit(clause.Associations).Save(cart).Error; err != nil {
		return err
	}

	if err := db.Where("cart_id = ?", cart.ID).Delete(&domain.CartItem{}).Error; err != nil {
		return err
	}
	if len(cart.Items) == 0 {
		return nil
	}
	for i := range cart.Items {
		cart.Items[i].CartID = cart.ID
	}
	return db.Create(&cart.Items).Error
}

func (r *cartRepo) Delete(ctx context.Context, cartID uint64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("cart_id = ?", cartID).Delete(&domain.CartItem{}).Error; err != nil {
		return err
	}
	return db.Delete(&domain.Cart{}, cartID).Error
}
