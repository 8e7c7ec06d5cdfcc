package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/ai-saas-backend/internal/config"
	"github.com/sandeepkv93/ai-saas-backend/internal/database"
	"github.com/sandeepkv93/ai-saas-backend/internal/domain"
)

func newDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.OpenDialect(config.DriverSQLite, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(context.Background(), db, config.DriverSQLite, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, repo UserRepository, email string) *domain.User {
	t.Helper()
	hash := "hash"
	u := &domain.User{Email: email, Name: "User " + email, PasswordHash: &hash, Provider: domain.ProviderLocal}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func strPtr(v string) *string { return &v }
