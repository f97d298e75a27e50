package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stone_shop/internal/models"
)

// CartRow is one product of a cart with the number of units held.
type CartRow struct {
	ProductID uint
	Name      string
	MainImage string
	Price     float64
	Count     int64
}

func (r *GormRepo) AddCartItems(ctx context.Context, userID, productID uint, n int) error {
	items := make([]models.CartItem, n)
	for i := range items {
		items[i] = models.CartItem{UserID: userID, ProductID: productID}
	}
	return r.DB.WithContext(ctx).Create(&items).Error
}

// CartRows groups the user's units per product. Units whose product is gone
// drop out through the inner join.
func (r *GormRepo) CartRows(ctx context.Context, userID uint) ([]CartRow, error) {
	var rows []CartRow
	err := r.DB.WithContext(ctx).
		Table("cart_items").
		Select("products.id AS product_id, products.name AS name, products.main_image AS main_image, products.price AS price, COUNT(cart_items.id) AS count").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("cart_items.user_id = ?", userID).
		Group("products.id, products.name, products.main_image, products.price").
		Order("products.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func productIDsByName(db *gorm.DB, name string) *gorm.DB {
	return db.Model(&models.Product{}).Select("id").Where("name = ?", name)
}

// DeleteOneCartItem removes a single unit of the named product.
func (r *GormRepo) DeleteOneCartItem(ctx context.Context, userID uint, productName string) (bool, error) {
	deleted := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND product_id IN (?)", userID, productIDsByName(tx, productName)).
			Order("id ASC").Limit(1).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res := tx.Delete(&models.CartItem{}, ids[0])
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (r *GormRepo) DeleteAllCartItems(ctx context.Context, userID uint, productName string) (int64, error) {
	db := r.DB.WithContext(ctx)
	res := db.Where("user_id = ? AND product_id IN (?)", userID, productIDsByName(db, productName)).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) CountCartItems(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
