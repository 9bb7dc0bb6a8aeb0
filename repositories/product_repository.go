package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"groupbuy-service/models"
)

// ProductRepositoryInterface covers the product reads the engines depend on
// plus the admin insert.
type ProductRepositoryInterface interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
}

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = "id, name, description, image_url, original_price, group_price, now_price, min_people, stock, sale_mode, fulfillment_type, active, created_at"

func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.OriginalPrice, &p.GroupPrice,
		&p.NowPrice, &p.MinPeople, &p.Stock, &p.SaleMode, &p.FulfillmentType, &p.Active, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepository) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO products (name, description, image_url, original_price, group_price, now_price, min_people, stock, sale_mode, fulfillment_type, active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.Name, p.Description, p.ImageURL, p.OriginalPrice, p.GroupPrice, p.NowPrice,
		p.MinPeople, p.Stock, p.SaleMode, p.FulfillmentType, p.Active)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetProduct(ctx, id)
}
