package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCreditCard, PaymentDebitCard:
		return true
	}
	return false
}

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type MovementType string

const (
	MovementSale             MovementType = "sale"
	MovementSaleCancellation MovementType = "sale_cancellation"
	MovementAdjustment       MovementType = "adjustment"
)

type Product struct {
	ID                 string              `json:"id" db:"id"`
	Name               string              `json:"name" db:"name"`
	Barcode            string              `json:"barcode" db:"barcode"`
	Description        string              `json:"description" db:"description"`
	Category           string              `json:"category" db:"category"`
	Price              decimal.Decimal     `json:"price" db:"price"`
	Stock              int                 `json:"stock" db:"stock"`
	IsDiscounted       bool                `json:"is_discounted" db:"is_discounted"`
	DiscountPercentage decimal.NullDecimal `json:"discount_percentage" db:"discount_percentage"`
	ExpirationDate     *time.Time          `json:"expiration_date,omitempty" db:"expiration_date"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`

	// Derived on read from Price and the discount fields.
	DiscountedPrice decimal.Decimal `json:"discounted_price" db:"-"`
}

type ProductFilter struct {
	Category string
	Query    string
}

type Sale struct {
	ID              string          `json:"id" db:"id"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status" db:"payment_status"`
	Installments    int             `json:"installments" db:"installments"`
	CardLastDigits  string          `json:"card_last_digits,omitempty" db:"card_last_digits"`
	DiscountApplied decimal.Decimal `json:"discount_applied" db:"discount_applied"`
	CouponCode      string          `json:"coupon_code,omitempty" db:"coupon_code"`
	SaleDate        time.Time       `json:"sale_date" db:"sale_date"`
	CashierID       *string         `json:"cashier_id" db:"cashier_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Items           []SaleItem      `json:"items" db:"-"`
}

type SaleItem struct {
	ID              string          `json:"id" db:"id"`
	SaleID          string          `json:"sale_id" db:"sale_id"`
	ProductID       string          `json:"product_id" db:"product_id"`
	LineNo          int             `json:"line_no" db:"line_no"`
	Quantity        int             `json:"quantity" db:"quantity"`
	PriceAtSale     decimal.Decimal `json:"price_at_sale" db:"price_at_sale"`
	DiscountApplied decimal.Decimal `json:"discount_applied" db:"discount_applied"`

	// Derived on read: PriceAtSale*Quantity - DiscountApplied.
	Subtotal decimal.Decimal `json:"subtotal" db:"-"`
	Product  *Product        `json:"product,omitempty" db:"-"`
}

type SaleFilter struct {
	Status PaymentStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}

type StockMovement struct {
	ID          string       `json:"id" db:"id"`
	ProductID   string       `json:"product_id" db:"product_id"`
	Type        MovementType `json:"type" db:"type"`
	Quantity    int          `json:"quantity" db:"quantity"`
	StockBefore int          `json:"stock_before" db:"stock_before"`
	StockAfter  int          `json:"stock_after" db:"stock_after"`
	Reference   string       `json:"reference,omitempty" db:"reference"`
	Reason      string       `json:"reason,omitempty" db:"reason"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

type DailyReport struct {
	Date           string                            `json:"date"`
	TotalSales     int                               `json:"total_sales"`
	TotalRevenue   decimal.Decimal                   `json:"total_revenue"`
	TotalItems     int                               `json:"total_items"`
	PaymentMethods map[PaymentMethod]decimal.Decimal `json:"payment_methods"`
	Sales          []Sale                            `json:"sales"`
}

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
// Username doubles as the cashier reference stored on sales.
type UserAccount struct {
	Username  string    `db:"username"`
	Name      string    `db:"name"`
	Password  string    `db:"password"`
	Role      string    `db:"role"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}
