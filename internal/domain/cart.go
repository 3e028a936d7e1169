package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart holds at most one item per content. It is created on first add and
// deleted when an order is assembled from it.
type Cart struct {
	ID        uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    uint64     `json:"userId" gorm:"uniqueIndex;not null"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CartItem struct {
	CartID    uint64          `json:"cartId" gorm:"primaryKey;autoIncrement:false"`
	ContentID uint64          `json:"contentId" gorm:"primaryKey;autoIncrement:false"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(18,2);not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	AddedAt   time.Time       `json:"addedAt"`
}

func NewCart(userID uint64) *Cart {
	now := time.Now()
	return &Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}
}

// AddItemOrIncrement adds quantity to the existing line for contentID or
// creates one at price. An existing line keeps the price it was first added at.
func (c *Cart) AddItemOrIncrement(contentID uint64, price decimal.Decimal, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	now := time.Now()
	for i := range c.Items {
		if c.Items[i].ContentID == contentID {
			c.Items[i].Quantity += quantity
			c.UpdatedAt = now
			return nil
		}
	}
	c.Items = append(c.Items, CartItem{
		CartID:    c.ID,
		ContentID: contentID,
		Price:     price,
		Quantity:  quantity,
		AddedAt:   now,
	})
	c.UpdatedAt = now
	return nil
}

func (c *Cart) RemoveItem(contentID uint64) error {
	for i := range c.Items {
		if c.Items[i].ContentID == contentID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrCartItemNotFound.WithDetail("content %d", contentID)
}

func (c *Cart) Clear() {
	c.Items = nil
	c.UpdatedAt = time.Now()
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// CalculateTotal sums price * quantity over the cart lines.
func (c *Cart) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ContentIDs returns the distinct content ids in insertion order.
func (c *Cart) ContentIDs() []uint64 {
	ids := make([]uint64, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ContentID)
	}
	return ids
}
