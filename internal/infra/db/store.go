package db

import (
	"fmt"

	"chiefgate/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := gdb.AutoMigrate(
		&MailModel{},
		&LicenceDataModel{},
		&UsageDataModel{},
		&LicencePayloadModel{},
		&LicenceIDMappingModel{},
		&GoodIDMappingModel{},
		&TransactionMappingModel{},
		&MailReadStatusModel{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{DB: gdb}, nil
}
