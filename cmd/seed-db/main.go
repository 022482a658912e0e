// Command seed-db loads a starter catalog, a few discounts and an admin
// account. Running it twice is safe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront/internal/domain/discount"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
}

var defaultProducts = []productJSON{
	{ID: "p-headphones", Name: "Wireless Headphones", Price: decimal.RequireFromString("2999"), Description: "Over-ear, 30h battery", Image: "headphones.jpg", Category: "Electronics", Stock: 50},
	{ID: "p-keyboard", Name: "Mechanical Keyboard", Price: decimal.RequireFromString("4499"), Description: "Hot-swappable switches", Image: "keyboard.jpg", Category: "Electronics", Stock: 30},
	{ID: "p-mug", Name: "Ceramic Mug", Price: decimal.RequireFromString("349"), Description: "350 ml, dishwasher safe", Image: "mug.jpg", Category: "Home", Stock: 200},
	{ID: "p-lamp", Name: "Desk Lamp", Price: decimal.RequireFromString("1299"), Description: "Dimmable LED", Image: "lamp.jpg", Category: "Home", Stock: 75},
	{ID: "p-tshirt", Name: "Cotton T-Shirt", Price: decimal.RequireFromString("599"), Description: "Organic cotton", Image: "tshirt.jpg", Category: "Apparel", Stock: 120},
	{ID: "p-backpack", Name: "Travel Backpack", Price: decimal.RequireFromString("2499.50"), Description: "35 l, water resistant", Image: "backpack.jpg", Category: "Apparel", Stock: 40},
}

func seedDiscounts(now time.Time) []discount.Discount {
	mk := func(code, desc string, typ discount.Type, value, minOrder, maxDisc int64, products ...string) discount.Discount {
		d := discount.Discount{
			ID:                 uuid.NewString(),
			Code:               code,
			Description:        desc,
			Type:               typ,
			Value:              decimal.NewFromInt(value),
			MinOrderValue:      decimal.NewNullDecimal(decimal.NewFromInt(minOrder)),
			MaxDiscountAmount:  decimal.NewNullDecimal(decimal.NewFromInt(maxDisc)),
			StartDate:          now,
			IsActive:           true,
			ApplicableProducts: products,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		d.Normalize()
		return d
	}
	return []discount.Discount{
		mk("WELCOME10", "10% off everything", discount.TypePercentage, 10, 0, 0),
		mk("AUDIO20", "20% off headphones, up to 500", discount.TypePercentage, 20, 0, 500, "p-headphones"),
		mk("HOME100", "100 off home goods over 1000", discount.TypeFixed, 100, 1000, 0, "p-mug", "p-lamp"),
	}
}

type options struct {
	databaseURL   string
	productsFile  string
	adminEmail    string
	adminUsername string
	adminPassword string
}

func main() {
	var o options
	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or SHOP_DATABASE_URL / DATABASE_URL env)")
	flag.StringVar(&o.productsFile, "products-file", "", "JSON file with products to seed instead of the built-in catalog")
	flag.StringVar(&o.adminEmail, "admin-email", "admin@example.com", "admin account email")
	flag.StringVar(&o.adminUsername, "admin-username", "admin", "admin account username")
	flag.StringVar(&o.adminPassword, "admin-password", "", "admin account password (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	for _, env := range []string{"SHOP_DATABASE_URL", "DATABASE_URL"} {
		if o.databaseURL == "" {
			o.databaseURL = os.Getenv(env)
		}
	}
	if o.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if o.adminPassword == "" {
		o.adminPassword = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, o); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, o options) error {
	products, err := loadProducts(o.productsFile)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	now := time.Now().UTC()
	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), products, now); err != nil {
		return errors.Wrap(err, "seed products")
	}

	n, err := postgres.NewDiscountRepository(pool).ImportBatch(ctx, seedDiscounts(now))
	if err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	lg.Info("Seeded discounts", zap.Int64("inserted", n))

	if o.adminPassword == "" {
		lg.Warn("Admin password not set, skipping admin account")
		return nil
	}
	admin, err := newAdmin(o.adminEmail, o.adminUsername, o.adminPassword, now)
	if err != nil {
		return err
	}
	switch err := postgres.NewUserRepository(pool).Create(ctx, admin); {
	case errors.Is(err, user.ErrExists):
		lg.Info("Admin account already exists", zap.String("email", admin.Email))
	case err != nil:
		return errors.Wrap(err, "create admin")
	default:
		lg.Info("Created admin account", zap.String("email", admin.Email))
	}
	return nil
}

func loadProducts(path string) ([]productJSON, error) {
	if path == "" {
		return defaultProducts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}
	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	for i, p := range products {
		if p.ID == "" || p.Name == "" || p.Price.IsNegative() {
			return nil, errors.Errorf("product %d: id, name and a non-negative price are required", i)
		}
	}
	return products, nil
}

type productStore interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
	CreateProduct(ctx context.Context, p *product.Product) error
	UpdateProduct(ctx context.Context, p *product.Product) error
}

// seedProducts creates missing products and refreshes existing ones.
func seedProducts(ctx context.Context, lg *zap.Logger, repo productStore, products []productJSON, now time.Time) error {
	for _, pj := range products {
		p := product.Product{
			ID:          pj.ID,
			Name:        pj.Name,
			Price:       pj.Price,
			Description: pj.Description,
			Image:       pj.Image,
			Category:    pj.Category,
			Stock:       pj.Stock,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, err := repo.GetByID(ctx, p.ID)
		switch {
		case errors.Is(err, product.ErrNotFound):
			err = repo.CreateProduct(ctx, &p)
		case err == nil:
			err = repo.UpdateProduct(ctx, &p)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		lg.Debug("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	lg.Info("Seeded products", zap.Int("count", len(products)))
	return nil
}

func newAdmin(email, username, password string, now time.Time) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash admin password")
	}
	return &user.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         user.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
