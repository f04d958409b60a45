package allocation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/2b33rs/codevision-backend/internal/inventory"
	"github.com/2b33rs/codevision-backend/internal/order"
)

// ReservationPolicy decides what happens to finished stock that matches a
// position exactly.
type ReservationPolicy interface {
	Reserve(ctx context.Context, key order.Key, stock inventory.Stock, quantity int) error
}

// NoReservation leaves matching stock untouched.
type NoReservation struct{}

func (NoReservation) Reserve(context.Context, order.Key, inventory.Stock, int) error { return nil }

type FinishedGoodsReserver interface {
	RequestFinishedGoods(ctx context.Context, materialID int64, amount int, key string) error
}

// FinishedGoodsReservation reserves min(stock, quantity) units of finished
// goods against the position key.
type FinishedGoodsReservation struct {
	Reserver FinishedGoodsReserver
}

func (p FinishedGoodsReservation) Reserve(ctx context.Context, key order.Key, stock inventory.Stock, quantity int) error {
	amount := min(stock.Count, quantity)
	if amount <= 0 {
		return nil
	}
	if stock.MaterialID == nil {
		log.Warn().Stringer("key", key).Int("amount", amount).Msg("allocation: no material id for finished goods, skipping reservation")
		return nil
	}
	if err := p.Reserver.RequestFinishedGoods(ctx, *stock.MaterialID, amount, key.String()); err != nil {
		return fmt.Errorf("allocation: reserve %d finished goods for %s: %w", amount, key, err)
	}
	log.Info().Stringer("key", key).Int64("material_id", *stock.MaterialID).Int("amount", amount).Msg("allocation: finished goods reserved")
	return nil
}
