package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

var _ store.Repository = (*Store)(nil)

// Store keeps everything in maps guarded by one RWMutex. A unit of work holds
// the write lock for its whole duration, so units are serialized and readers
// never observe staged mutations.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	productIDByCode map[string]string
	sales           map[string]*domain.Sale
	movements       []domain.StockMovement
	usersByUsername map[string]domain.UserAccount
	now             func() time.Time
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		productIDByCode: make(map[string]string),
		sales:           make(map[string]*domain.Sale),
		movements:       make([]domain.StockMovement, 0, 64),
		usersByUsername: make(map[string]domain.UserAccount),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// dev defaults are used with a warning when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		zap.L().Warn("memory store is using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		name     string
		password string
		role     string
	}{
		{"admin", "Administrator", adminPwd, "admin"},
		{"cashier", "Kasir Utama", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	now := s.now()
	seed := []domain.Product{
		{ID: "prd-mie-01", Name: "Mie Goreng Instan", Barcode: "8991001000011", Category: "grocery", Price: decimal.RequireFromString("3500.00"), Stock: 120},
		{ID: "prd-telur-01", Name: "Telur 10 Butir", Barcode: "8991001000028", Category: "grocery", Price: decimal.RequireFromString("26500.00"), Stock: 60},
		{ID: "prd-susu-01", Name: "Susu UHT 1L", Barcode: "8991001000035", Category: "dairy", Price: decimal.RequireFromString("18900.00"), Stock: 48},
		{ID: "prd-roti-01", Name: "Roti Tawar", Barcode: "8991001000042", Category: "bakery", Price: decimal.RequireFromString("17800.00"), Stock: 30,
			IsDiscounted: true, DiscountPercentage: decimal.NewNullDecimal(decimal.NewFromInt(10))},
		{ID: "prd-kopi-01", Name: "Kopi Sachet", Barcode: "8991001000059", Category: "beverage", Price: decimal.RequireFromString("2600.00"), Stock: 200},
		{ID: "prd-teh-01", Name: "Teh Celup", Barcode: "8991001000066", Category: "beverage", Price: decimal.RequireFromString("9800.00"), Stock: 80},
		{ID: "prd-keripik-01", Name: "Keripik Singkong", Barcode: "8991001000073", Category: "snack", Price: decimal.RequireFromString("12800.00"), Stock: 40,
			IsDiscounted: true, DiscountPercentage: decimal.NewNullDecimal(decimal.NewFromInt(25))},
		{ID: "prd-sabun-01", Name: "Sabun Mandi", Barcode: "8991001000080", Category: "household", Price: decimal.RequireFromString("7400.00"), Stock: 75},
	}
	for _, p := range seed {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
		s.productIDByCode[p.Barcode] = p.ID
	}
	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &unit{s: s}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category := strings.ToLower(strings.TrimSpace(filter.Category))
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category != "" && strings.ToLower(p.Category) != category {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) && !strings.Contains(p.Barcode, query) {
			continue
		}
		products = append(products, cloneProduct(p))
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, &store.NotFoundError{Entity: "product", ID: id}
	}
	out := cloneProduct(p)
	return &out, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.productIDByCode[barcode]
	if !ok {
		return nil, &store.NotFoundError{Entity: "product", ID: barcode}
	}
	out := cloneProduct(s.products[id])
	return &out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, &store.ConflictError{Entity: "product", Reason: "id already exists"}
	}
	if _, exists := s.productIDByCode[product.Barcode]; exists {
		return nil, &store.ConflictError{Entity: "product", Reason: "barcode already exists"}
	}
	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = cloneProduct(product)
	s.productIDByCode[product.Barcode] = product.ID

	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return &store.NotFoundError{Entity: "product", ID: id}
	}
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			if item.ProductID == id {
				return &store.ConflictError{Entity: "product", Reason: "referenced by existing sales"}
			}
		}
	}
	delete(s.products, id)
	delete(s.productIDByCode, p.Barcode)
	return nil
}

func (s *Store) ListStockMovements(_ context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockMovement, 0, 16)
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if m.ProductID != productID {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, &store.NotFoundError{Entity: "sale", ID: id}
	}
	out := s.withProducts(sale)
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.Status != "" && sale.PaymentStatus != filter.Status {
			continue
		}
		if filter.From != nil && sale.SaleDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && sale.SaleDate.After(*filter.To) {
			continue
		}
		sales = append(sales, s.withProducts(sale))
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if c := b.SaleDate.Compare(a.SaleDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username", "username and password are required")
	}
	if _, exists := s.usersByUsername[username]; exists {
		return &store.ConflictError{Entity: "user", Reason: "username already exists"}
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, &store.NotFoundError{Entity: "user", ID: username}
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("password", "password is required")
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return &store.NotFoundError{Entity: "user", ID: username}
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// withProducts copies sale and attaches the current product of every item.
// Callers must hold s.mu.
func (s *Store) withProducts(sale *domain.Sale) domain.Sale {
	out := cloneSale(sale)
	for i := range out.Items {
		if p, ok := s.products[out.Items[i].ProductID]; ok {
			product := cloneProduct(p)
			out.Items[i].Product = &product
		}
	}
	return out
}

func cloneProduct(p domain.Product) domain.Product {
	if p.ExpirationDate != nil {
		exp := *p.ExpirationDate
		p.ExpirationDate = &exp
	}
	return p
}

func cloneSale(src *domain.Sale) domain.Sale {
	out := *src
	if src.CashierID != nil {
		cashier := *src.CashierID
		out.CashierID = &cashier
	}
	out.Items = make([]domain.SaleItem, len(src.Items))
	for i, item := range src.Items {
		item.Product = nil
		out.Items[i] = item
	}
	return out
}
