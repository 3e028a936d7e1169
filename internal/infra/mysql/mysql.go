package mysql

import (
	"fmt"

	"marketplace-service/internal/config"
	"marketplace-service/internal/domain"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// NewMySQL opens the database, applies pool settings and migrates the schema.
func NewMySQL(cfg config.MySQL) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Models lists every persisted type in creation order.
func Models() []any {
	return []any{
		&domain.Collaborator{},
		&domain.CollaboratorBank{},
		&domain.Content{},
		&domain.Cart{},
		&domain.CartItem{},
		&domain.Coupon{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.OrderCoupon{},
		&domain.Payment{},
		&domain.PaymentTransaction{},
		&domain.Wallet{},
		&domain.WalletTransaction{},
		&domain.Download{},
		&domain.OrderFulfillment{},
		&domain.Withdrawal{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("mysql: migrate: %w", err)
	}
	return nil
}
