package services

import (
	"context"
	"sort"
	"time"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/logging"
	"marketplace-service/internal/repository"

	"github.com/go-logr/logr"
)

type DownloadService struct {
	store  repository.Store
	logger logr.Logger
	now    func() time.Time
}

func NewDownloadService(store repository.Store) *DownloadService {
	return &DownloadService{store: store, logger: logging.New("download"), now: time.Now}
}

// Grant adds downloads for every content on a paid order. An order is granted
// at most once, tracked by its fulfillment row.
func (s *DownloadService) Grant(ctx context.Context, tx repository.Store, order *domain.Order) error {
	done, err := tx.Downloads().FindFulfillment(ctx, order.ID)
	if err != nil {
		return err
	}
	if done != nil {
		return nil
	}

	grants := domain.DownloadGrants(order.Items)
	contentIDs := make([]uint64, 0, len(grants))
	for id := range grants {
		contentIDs = append(contentIDs, id)
	}
	sort.Slice(contentIDs, func(i, j int) bool { return contentIDs[i] < contentIDs[j] })

	now := s.now()
	for _, contentID := range contentIDs {
		d, err := tx.Downloads().FindForUpdate(ctx, order.UserID, contentID)
		if err != nil {
			return err
		}
		if d == nil {
			d = &domain.Download{UserID: order.UserID, ContentID: contentID, DownloadCount: grants[contentID], UpdatedAt: now}
			if err := tx.Downloads().Create(ctx, d); err != nil {
				return err
			}
			continue
		}
		d.DownloadCount += grants[contentID]
		d.UpdatedAt = now
		if err := tx.Downloads().Save(ctx, d); err != nil {
			return err
		}
	}

	s.logger.V(1).Info("downloads granted", "orderId", order.ID, "userId", order.UserID, "contents", len(contentIDs))
	return tx.Downloads().CreateFulfillment(ctx, &domain.OrderFulfillment{OrderID: order.ID, FulfilledAt: now})
}

func (s *DownloadService) ListDownloads(ctx context.Context, userID uint64) ([]domain.Download, error) {
	return s.store.Downloads().ListByUser(ctx, userID)
}

// ConsumeDownload spends one download of contentID.
func (s *DownloadService) ConsumeDownload(ctx context.Context, userID, contentID uint64) (*domain.Download, error) {
	var out *domain.Download
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		d, err := tx.Downloads().FindForUpdate(ctx, userID, contentID)
		if err != nil {
			return err
		}
		if d == nil {
			return domain.ErrDownloadNotFound.WithDetail("content %d", contentID)
		}
		if err := d.Consume(); err != nil {
			return err
		}
		out = d
		return tx.Downloads().Save(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
