package domain

import (
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

const DefaultCurrency = "VND"

func (s OrderStatus) IsTerminal() bool {
	return s == OrderPaid || s == OrderFailed || s == OrderCancelled
}

// CanTransitionTo allows only pending -> {paid, failed, cancelled}.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s != OrderPending {
		return false
	}
	switch next {
	case OrderPaid, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

type Order struct {
	ID          uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Reference   string          `json:"reference" gorm:"size:32;uniqueIndex;not null"`
	UserID      uint64          `json:"userId" gorm:"not null;index"`
	TotalAmount decimal.Decimal `json:"totalAmount" gorm:"type:decimal(18,2);not null"`
	Currency    string          `json:"currency" gorm:"size:3;not null;default:'VND'"`
	Status      OrderStatus     `json:"status" gorm:"size:16;not null;default:'pending';index"`
	Items       []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	Coupon      *OrderCoupon    `json:"coupon,omitempty" gorm:"foreignKey:OrderID"`
	Payment     *Payment        `json:"payment,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt   time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// OrderItem snapshots price and collaborator at order time; commission math
// reads these values, never the live catalog.
type OrderItem struct {
	OrderID        uint64          `json:"orderId" gorm:"primaryKey;autoIncrement:false"`
	ContentID      uint64          `json:"contentId" gorm:"primaryKey;autoIncrement:false"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(18,2);not null"`
	Quantity       int             `json:"quantity" gorm:"not null"`
	CollaboratorID *uint64         `json:"collaboratorId,omitempty" gorm:"index"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderCoupon struct {
	OrderID        uint64          `json:"orderId" gorm:"primaryKey;autoIncrement:false"`
	CouponID       uint64          `json:"couponId" gorm:"not null;index"`
	Code           string          `json:"code" gorm:"size:64;not null"`
	DiscountAmount decimal.Decimal `json:"discountAmount" gorm:"type:decimal(18,2);not null"`
	AppliedAt      time.Time       `json:"appliedAt"`
}

// NewOrder builds a pending order from resolved lines. The total is the
// subtotal minus discount, floored at zero.
func NewOrder(userID uint64, items []OrderItem, discount decimal.Decimal) *Order {
	o := &Order{
		Reference: xid.New().String(),
		UserID:    userID,
		Currency:  DefaultCurrency,
		Status:    OrderPending,
		Items:     items,
	}
	total := o.Subtotal().Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.TotalAmount = total
	return o
}

func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// TransitionTo moves the order to next or returns ErrIllegalTransition.
func (o *Order) TransitionTo(next OrderStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return ErrIllegalTransition.WithDetail("order %d: %s -> %s", o.ID, o.Status, next)
	}
	o.Status = next
	return nil
}

func (o *Order) OwnedBy(userID uint64) bool { return o.UserID == userID }
