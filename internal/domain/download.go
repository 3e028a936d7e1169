package domain

import "time"

// DownloadsPerUnit is how many downloads one purchased unit grants.
const DownloadsPerUnit = 5

type Download struct {
	ID            uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID        uint64    `json:"userId" gorm:"not null;uniqueIndex:idx_download_user_content,priority:1"`
	ContentID     uint64    `json:"contentId" gorm:"not null;uniqueIndex:idx_download_user_content,priority:2"`
	DownloadCount int       `json:"downloadCount" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// OrderFulfillment marks an order whose downloads have been granted.
type OrderFulfillment struct {
	OrderID     uint64    `json:"orderId" gorm:"primaryKey;autoIncrement:false"`
	FulfilledAt time.Time `json:"fulfilledAt"`
}

// Consume spends one download.
func (d *Download) Consume() error {
	if d.DownloadCount <= 0 {
		return ErrDownloadsExhausted
	}
	d.DownloadCount--
	d.UpdatedAt = time.Now()
	return nil
}

// DownloadGrants sums granted downloads per content over the order lines.
func DownloadGrants(items []OrderItem) map[uint64]int {
	grants := make(map[uint64]int, len(items))
	for _, item := range items {
		grants[item.ContentID] += DownloadsPerUnit * item.Quantity
	}
	return grants
}
