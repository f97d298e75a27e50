package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Name         string    `gorm:"not null"                 json:"name"`
	Role         string    `gorm:"not null;default:user"    json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

type Product struct {
	ID            uint           `gorm:"primaryKey;autoIncrement"              json:"id"`
	Name          string         `gorm:"uniqueIndex;not null"                  json:"name"`
	Price         float64        `gorm:"not null;check:price > 0"              json:"price"`
	MainImage     string         `gorm:"uniqueIndex;not null"                  json:"main_image"`
	MainImageName string         `json:"main_image_name"`
	Description   string         `gorm:"not null"                              json:"description"`
	Specification string         `gorm:"not null"                              json:"specification"`
	Images        []ProductImage `gorm:"foreignKey:ProductID"                  json:"side_images"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ProductImage is a side image. Position runs from 1 to MaxSideImages.
type ProductImage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint   `gorm:"index;not null"           json:"product_id"`
	Position  int    `gorm:"not null"                 json:"position"`
	Image     string `gorm:"uniqueIndex;not null"     json:"image"`
	Name      string `json:"name"`
}

const MaxSideImages = 5

type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_review_user_product;not null" json:"user_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_review_user_product;not null;index" json:"product_id"`
	Text      string    `gorm:"type:text;not null"                      json:"text"`
	Stars     int       `gorm:"not null;check:stars >= 1 AND stars <= 5" json:"stars"`
	Author    string    `gorm:"-"                                       json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartItem is a single unit of a product in a user's cart. ProductID is not a
// foreign key: rows may outlive their product and are skipped on read.
type CartItem struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null"           json:"user_id"`
	ProductID uint      `gorm:"index;not null"           json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type NewsletterSubscription struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null"     json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"           json:"id"`
	Role      string `gorm:"not null"             json:"role"`
	Token     string `gorm:"uniqueIndex;not null" json:"-"`
	UserID    uint   `gorm:"index;not null"       json:"user_id"`
	JTI       string `gorm:"uniqueIndex;not null" json:"jti"`
	ExpiresAt int64  `gorm:"not null"             json:"expires_at"`
	Revoked   bool   `gorm:"default:false"        json:"revoked"`
}

func All() []any {
	return []any{
		&User{},
		&Product{},
		&ProductImage{},
		&Review{},
		&CartItem{},
		&NewsletterSubscription{},
		&RefreshToken{},
	}
}
