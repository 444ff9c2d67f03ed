package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/pricing"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

// CreateSale checks out a cart as one atomic unit: every line is priced and
// its stock decremented, then the completed sale and its items are written.
// Any failure leaves stock and sales exactly as they were.
func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.Sale, error) {
	if err := normalizeSale(&req); err != nil {
		s.metrics.SaleFailed(failureReason(err))
		return domain.Sale{}, err
	}

	var cashierID *string
	if req.UserID != "" {
		user, err := s.repo.GetUser(ctx, req.UserID)
		if err != nil {
			s.metrics.SaleFailed(failureReason(err))
			return domain.Sale{}, err
		}
		cashierID = &user.Username
	}

	now := s.now()
	sale := domain.Sale{
		ID:             xid.New("sale"),
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  domain.StatusCompleted,
		Installments:   req.Installments,
		CardLastDigits: req.CardLastDigits,
		CouponCode:     req.CouponCode,
		SaleDate:       now,
		CashierID:      cashierID,
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		total := decimal.Zero
		discount := decimal.Zero
		items := make([]domain.SaleItem, 0, len(req.Items))

		for i, line := range req.Items {
			product, err := uow.Products().FindProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if product.Stock < line.Quantity {
				return &store.InsufficientStockError{ProductID: product.ID, Available: product.Stock, Requested: line.Quantity}
			}

			unitPrice := pricing.Resolve(*product)
			if line.DiscountAmount.GreaterThan(pricing.Gross(unitPrice, line.Quantity)) {
				return store.Invalid(fmt.Sprintf("items[%d].discount_amount", i), "must not exceed the line total")
			}

			left, err := uow.Products().DecrementStock(ctx, product.ID, line.Quantity)
			if err != nil {
				return err
			}
			err = uow.Products().RecordMovement(ctx, domain.StockMovement{
				ID:          xid.New("mov"),
				ProductID:   product.ID,
				Type:        domain.MovementSale,
				Quantity:    -line.Quantity,
				StockBefore: left + line.Quantity,
				StockAfter:  left,
				Reference:   sale.ID,
				CreatedAt:   now,
			})
			if err != nil {
				return err
			}

			total = total.Add(pricing.LineSubtotal(unitPrice, line.Quantity, line.DiscountAmount))
			discount = discount.Add(line.DiscountAmount)
			items = append(items, domain.SaleItem{
				ID:              xid.New("item"),
				SaleID:          sale.ID,
				ProductID:       product.ID,
				LineNo:          i + 1,
				Quantity:        line.Quantity,
				PriceAtSale:     unitPrice,
				DiscountApplied: line.DiscountAmount.Round(2),
			})
		}

		sale.TotalAmount = total.Round(2)
		sale.DiscountApplied = discount.Round(2)
		sale.Items = items
		return uow.Sales().InsertSale(ctx, &sale)
	})
	if err != nil {
		err = classify(err)
		s.metrics.SaleFailed(failureReason(err))
		if errors.Is(err, store.ErrTransactionFailure) {
			s.log(ctx).Error("sale transaction failed", zap.Error(err))
		} else {
			s.log(ctx).Info("sale rejected", zap.Error(err))
		}
		return domain.Sale{}, err
	}

	units := 0
	for _, item := range sale.Items {
		units += item.Quantity
	}
	s.metrics.SaleCreated(string(sale.PaymentMethod), units)
	s.invalidateReport(ctx, sale.SaleDate)
	s.log(ctx).Info("sale created",
		zap.String("sale_id", sale.ID),
		zap.String("total", sale.TotalAmount.StringFixed(2)),
		zap.String("payment_method", string(sale.PaymentMethod)),
		zap.Int("lines", len(sale.Items)),
	)

	return s.reloadSale(ctx, &sale), nil
}

// SetSaleStatus rewrites the status of a sale. Only completed to cancelled
// restores stock, and it does so in the same unit as the status change.
func (s *Service) SetSaleStatus(ctx context.Context, id string, status domain.PaymentStatus) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	var fields []store.FieldError
	if id == "" {
		fields = append(fields, store.FieldError{Field: "id", Message: "is required"})
	}
	if !status.Valid() {
		fields = append(fields, store.FieldError{Field: "status", Message: "must be one of: pending, completed, cancelled"})
	}
	if err := invalid(fields); err != nil {
		return domain.Sale{}, err
	}

	now := s.now()
	var (
		previous domain.PaymentStatus
		saleDate = now
		restored bool
		updated  *domain.Sale
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		sale, err := uow.Sales().FindSale(ctx, id)
		if err != nil {
			return err
		}
		previous = sale.PaymentStatus
		saleDate = sale.SaleDate

		if previous == domain.StatusCompleted && status == domain.StatusCancelled {
			for _, item := range sale.Items {
				after, err := uow.Products().IncrementStock(ctx, item.ProductID, item.Quantity)
				if err != nil {
					return err
				}
				err = uow.Products().RecordMovement(ctx, domain.StockMovement{
					ID:          xid.New("mov"),
					ProductID:   item.ProductID,
					Type:        domain.MovementSaleCancellation,
					Quantity:    item.Quantity,
					StockBefore: after - item.Quantity,
					StockAfter:  after,
					Reference:   sale.ID,
					CreatedAt:   now,
				})
				if err != nil {
					return err
				}
			}
			restored = true
		}

		if err := uow.Sales().UpdateSaleStatus(ctx, id, status, now); err != nil {
			return err
		}
		sale.PaymentStatus = status
		sale.UpdatedAt = now
		updated = sale
		return nil
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, store.ErrTransactionFailure) {
			s.log(ctx).Error("sale status transaction failed", zap.String("sale_id", id), zap.Error(err))
		}
		return domain.Sale{}, err
	}

	if restored {
		s.metrics.SaleCancelled()
	}
	s.invalidateReport(ctx, saleDate)
	s.log(ctx).Info("sale status changed",
		zap.String("sale_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.Bool("stock_restored", restored),
	)

	return s.reloadSale(ctx, updated), nil
}

// reloadSale re-reads a committed sale with its products, falling back to
// the committed copy when the read fails.
func (s *Service) reloadSale(ctx context.Context, committed *domain.Sale) domain.Sale {
	sale, err := s.repo.GetSale(ctx, committed.ID)
	if err != nil {
		s.log(ctx).Warn("failed to reload committed sale", zap.String("sale_id", committed.ID), zap.Error(err))
		sale = committed
	}
	pricing.FillSale(sale)
	return *sale
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	pricing.FillSale(sale)
	return *sale, nil
}

const maxSaleListLimit = 500

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, store.Invalid("status", "must be one of: pending, completed, cancelled")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, store.Invalid("to", "must not be before from")
	}
	if filter.Limit <= 0 || filter.Limit > maxSaleListLimit {
		filter.Limit = 100
	}

	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		pricing.FillSale(&sales[i])
	}
	return sales, nil
}
