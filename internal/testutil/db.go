package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/stone_shop/internal/config"
	"github.com/Skotchmaster/stone_shop/internal/models"
)

// NewDB returns a migrated in-memory SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := config.InitDB(context.Background(), config.Config{DBDriver: "sqlite", DatabaseURL: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func SeedUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: email, PasswordHash: "x", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

func SeedProduct(t *testing.T, db *gorm.DB, name string, price float64) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:          name,
		Price:         price,
		MainImage:     name + ".png",
		MainImageName: name + ".png",
		Description:   "desc " + name,
		Specification: "spec " + name,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
