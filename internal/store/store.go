package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dione/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

var ErrNotFound = sql.ErrNoRows

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves active products filtered by category/subcategory.
// A zero limit means no limit.
func (s *Store) GetProducts(ctx context.Context, category, subcategory string, limit int) ([]models.Product, error) {
	query := "SELECT * FROM products WHERE status = $1"
	args := []interface{}{models.ProductStatusActive}

	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if subcategory != "" {
		args = append(args, subcategory)
		query += fmt.Sprintf(" AND subcategory = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var products []models.Product
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetVariantsByProductID retrieves all color variants of a product.
func (s *Store) GetVariantsByProductID(ctx context.Context, productID int64) ([]models.Variant, error) {
	var variants []models.Variant
	err := s.db.SelectContext(ctx, &variants,
		"SELECT * FROM product_variants WHERE product_id = $1 ORDER BY id", productID)
	return variants, err
}

// GetVariantByColor retrieves a variant by (product, color), matching the
// color case-insensitively and trimmed.
func (s *Store) GetVariantByColor(ctx context.Context, productID int64, color string) (*models.Variant, error) {
	var variant models.Variant
	err := s.db.GetContext(ctx, &variant,
		"SELECT * FROM product_variants WHERE product_id = $1 AND LOWER(TRIM(color_name)) = LOWER(TRIM($2))",
		productID, color)
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// GetVariantSizes retrieves all size rows of a variant.
func (s *Store) GetVariantSizes(ctx context.Context, variantID int64) ([]models.VariantSize, error) {
	var sizes []models.VariantSize
	err := s.db.SelectContext(ctx, &sizes,
		"SELECT * FROM variant_sizes WHERE variant_id = $1 ORDER BY id", variantID)
	return sizes, err
}

// GetVariantSize retrieves a size row by (variant, label), case-insensitive.
func (s *Store) GetVariantSize(ctx context.Context, variantID int64, sizeLabel string) (*models.VariantSize, error) {
	var size models.VariantSize
	err := s.db.GetContext(ctx, &size,
		"SELECT * FROM variant_sizes WHERE variant_id = $1 AND LOWER(TRIM(size_label)) = LOWER(TRIM($2))",
		variantID, sizeLabel)
	if err != nil {
		return nil, err
	}
	return &size, nil
}

// LockVariantSize locks the stock row for (product, color, size) inside tx.
// Concurrent buyers of the same variant serialize here.
func (s *Store) LockVariantSize(ctx context.Context, tx *sqlx.Tx, productID int64, color, size string) (*models.VariantSize, error) {
	var vs models.VariantSize
	err := tx.GetContext(ctx, &vs, `
		SELECT vs.* FROM variant_sizes vs
		JOIN product_variants v ON v.id = vs.variant_id
		WHERE v.product_id = $1
		  AND LOWER(TRIM(v.color_name)) = LOWER(TRIM($2))
		  AND LOWER(TRIM(vs.size_label)) = LOWER(TRIM($3))
		FOR UPDATE OF vs`,
		productID, color, size)
	if err != nil {
		return nil, err
	}
	return &vs, nil
}

// UpdateVariantSizeStock sets the stock of a size row inside tx.
func (s *Store) UpdateVariantSizeStock(ctx context.Context, tx *sqlx.Tx, sizeID int64, stock int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE variant_sizes SET stock_quantity = $1 WHERE id = $2", stock, sizeID)
	return err
}

// LockProduct locks a product row inside tx. Used for legacy products with
// no variant_sizes row to lock.
func (s *Store) LockProduct(ctx context.Context, tx *sqlx.Tx, productID int64) (*models.Product, error) {
	var product models.Product
	err := tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SetProductStock sets a product's total_stock and applies the status sync
// rule: zero stock forces out-of-stock, restocking an out-of-stock or draft
// product activates it, anything else is preserved.
func (s *Store) SetProductStock(ctx context.Context, tx *sqlx.Tx, productID int64, totalStock int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products SET
			total_stock = $1,
			status = CASE
				WHEN $1 = 0 THEN 'out-of-stock'
				WHEN status IN ('out-of-stock', 'draft') THEN 'active'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $2`,
		totalStock, productID)
	return err
}

// SyncProductStock recomputes total_stock from the variant tables and runs
// the status sync. No-op for products without normalized variants, whose
// stock lives on the product row itself.
func (s *Store) SyncProductStock(ctx context.Context, tx *sqlx.Tx, productID int64) error {
	var hasVariants bool
	err := tx.GetContext(ctx, &hasVariants,
		"SELECT EXISTS(SELECT 1 FROM product_variants WHERE product_id = $1)", productID)
	if err != nil {
		return err
	}
	if !hasVariants {
		return nil
	}

	var total int
	err = tx.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(vs.stock_quantity), 0)
		FROM variant_sizes vs
		JOIN product_variants v ON v.id = vs.variant_id
		WHERE v.product_id = $1`, productID)
	if err != nil {
		return err
	}

	return s.SetProductStock(ctx, tx, productID, total)
}
