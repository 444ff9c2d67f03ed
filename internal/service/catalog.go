package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/pricing"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range products {
		pricing.FillProduct(&products[i])
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	pricing.FillProduct(product)
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, store.Invalid("barcode", "is required")
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	pricing.FillProduct(product)
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Category = strings.TrimSpace(req.Category)

	fields := fieldErrors(req)
	fields = append(fields, checkPrice("price", req.Price)...)
	fields = append(fields, checkDiscountPercentage("discount_percentage", req.DiscountPercentage)...)
	if err := invalid(fields); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		ID:             xid.New("prd"),
		Name:           req.Name,
		Barcode:        req.Barcode,
		Description:    req.Description,
		Category:       req.Category,
		Price:          req.Price.Round(2),
		Stock:          req.Stock,
		IsDiscounted:   req.IsDiscounted,
		ExpirationDate: req.ExpirationDate,
	}
	if req.DiscountPercentage != nil {
		product.DiscountPercentage = decimal.NewNullDecimal(req.DiscountPercentage.Round(2))
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.log(ctx).Info("product created", zap.String("product_id", created.ID), zap.String("barcode", created.Barcode))

	pricing.FillProduct(created)
	return *created, nil
}

// UpdateProduct applies the non-nil fields of req. A stock change is written
// as an adjustment movement in the same unit as the other fields.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdate) (domain.Product, error) {
	id = strings.TrimSpace(id)
	fields := fieldErrors(req)
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		fields = append(fields, store.FieldError{Field: "name", Message: "must not be blank"})
	}
	if req.Barcode != nil && strings.TrimSpace(*req.Barcode) == "" {
		fields = append(fields, store.FieldError{Field: "barcode", Message: "must not be blank"})
	}
	if req.Price != nil {
		fields = append(fields, checkPrice("price", *req.Price)...)
	}
	fields = append(fields, checkDiscountPercentage("discount_percentage", req.DiscountPercentage)...)
	if err := invalid(fields); err != nil {
		return domain.Product{}, err
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		product, err := uow.Products().FindProduct(ctx, id)
		if err != nil {
			return err
		}

		next := *product
		if req.Name != nil {
			next.Name = strings.TrimSpace(*req.Name)
		}
		if req.Barcode != nil {
			next.Barcode = strings.TrimSpace(*req.Barcode)
		}
		if req.Description != nil {
			next.Description = *req.Description
		}
		if req.Category != nil {
			next.Category = strings.TrimSpace(*req.Category)
		}
		if req.Price != nil {
			next.Price = req.Price.Round(2)
		}
		if req.ExpirationDate != nil {
			next.ExpirationDate = req.ExpirationDate
		}
		if req.IsDiscounted != nil {
			next.IsDiscounted = *req.IsDiscounted
		}
		if req.DiscountPercentage != nil {
			next.DiscountPercentage = decimal.NewNullDecimal(req.DiscountPercentage.Round(2))
		}

		if err := uow.Products().SaveProduct(ctx, next); err != nil {
			return err
		}
		if req.Stock != nil {
			return s.moveStock(ctx, uow, *product, *req.Stock, "product update")
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, classify(err)
	}
	return s.GetProduct(ctx, id)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.log(ctx).Info("product deleted", zap.String("product_id", id))
	return nil
}

// AdjustStock adds to, subtracts from or overwrites a product's stock. An
// omitted operation sets the stock to the given quantity.
func (s *Service) AdjustStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if err := invalid(fieldErrors(req)); err != nil {
		return domain.Product{}, err
	}
	if req.Operation == "" {
		req.Operation = domain.StockSet
	}
	qty := *req.Quantity
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual " + string(req.Operation)
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		product, err := uow.Products().FindProduct(ctx, id)
		if err != nil {
			return err
		}

		target := qty
		switch req.Operation {
		case domain.StockAdd:
			target = product.Stock + qty
		case domain.StockSubtract:
			if product.Stock < qty {
				return &store.InsufficientStockError{ProductID: product.ID, Available: product.Stock, Requested: qty}
			}
			target = product.Stock - qty
		}
		return s.moveStock(ctx, uow, *product, target, reason)
	})
	if err != nil {
		return domain.Product{}, classify(err)
	}

	s.log(ctx).Info("stock adjusted",
		zap.String("product_id", id),
		zap.String("operation", string(req.Operation)),
		zap.Int("quantity", qty),
	)
	return s.GetProduct(ctx, id)
}

// moveStock brings product to target stock and records the adjustment.
func (s *Service) moveStock(ctx context.Context, uow store.UnitOfWork, product domain.Product, target int, reason string) error {
	delta := target - product.Stock
	if delta == 0 {
		return nil
	}

	var (
		after int
		err   error
	)
	if delta > 0 {
		after, err = uow.Products().IncrementStock(ctx, product.ID, delta)
	} else {
		after, err = uow.Products().DecrementStock(ctx, product.ID, -delta)
	}
	if err != nil {
		return err
	}

	movement := domain.StockMovement{
		ID:          xid.New("mov"),
		ProductID:   product.ID,
		Type:        domain.MovementAdjustment,
		Quantity:    delta,
		StockBefore: after - delta,
		StockAfter:  after,
		Reason:      reason,
		CreatedAt:   s.now(),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		movement.Reference = actor.Username
	}
	return uow.Products().RecordMovement(ctx, movement)
}

// SetDiscount switches a product's discount. Turning it off clears the
// percentage; turning it on without a percentage keeps the stored one.
func (s *Service) SetDiscount(ctx context.Context, id string, req domain.DiscountRequest) (domain.Product, error) {
	id = strings.TrimSpace(id)
	fields := fieldErrors(req)
	fields = append(fields, checkDiscountPercentage("discount_percentage", req.DiscountPercentage)...)
	if err := invalid(fields); err != nil {
		return domain.Product{}, err
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		product, err := uow.Products().FindProduct(ctx, id)
		if err != nil {
			return err
		}

		next := *product
		next.IsDiscounted = *req.IsDiscounted
		switch {
		case !next.IsDiscounted:
			next.DiscountPercentage = decimal.NullDecimal{}
		case req.DiscountPercentage != nil:
			next.DiscountPercentage = decimal.NewNullDecimal(req.DiscountPercentage.Round(2))
		}
		return uow.Products().SaveProduct(ctx, next)
	})
	if err != nil {
		return domain.Product{}, classify(err)
	}
	return s.GetProduct(ctx, id)
}

func (s *Service) ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	productID = strings.TrimSpace(productID)
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.ListStockMovements(ctx, productID, limit)
}
