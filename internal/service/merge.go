package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	inErrors "github.com/evermart/cart/internal/errors"
	"github.com/evermart/cart/internal/log"
	"github.com/evermart/cart/internal/otel"
	"github.com/evermart/cart/internal/repository"
	"github.com/evermart/cart/pkg/response"
)

// MergeCart folds the guest session cart into the owner's cart and marks the
// session cart MERGED. MERGED is terminal, so replaying the merge fails with
// ErrSessionCartNotFound. The whole sequence runs in one transaction: no
// half-merged state is ever visible.
//
// When the same product exists in both carts the quantities are summed and
// the target's unit price wins. Lines only in the source are copied over.
func (s CartService) MergeCart(
	c context.Context,
	cartId uuid.UUID,
	ownerId uuid.UUID,
	sessionId string,
) (response.Cart, error) {
	c, span := otel.Tracer.Start(c, "CartService MergeCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService MergeCart").
		Str(log.KeyCartID, cartId.String()).
		Str(log.KeyOwnerID, ownerId.String()).
		Str(log.KeySessionID, sessionId).
		Logger()

	var target repository.Cart
	var targetItems []repository.CartItem
	err := s.store.WithinTx(c, func(store repository.Store) error {
		logger = logger.With().Str(log.KeyProcess, "finding target cart").Logger()
		logger.Info().Msg("finding target cart")
		var err error
		target, err = store.FindCartByIdAndOwner(c, cartId, ownerId)
		if err != nil {
			return fmt.Errorf("failed finding cartId=%s with error=%w", cartId.String(), err)
		}
		logger.Info().Msg("found target cart")

		logger = logger.With().Str(log.KeyProcess, "finding session cart").Logger()
		logger.Info().Msg("finding session cart")
		source, err := store.FindActiveCartBySession(c, sessionId)
		if err != nil {
			return fmt.Errorf("failed finding cart for sessionId=%s with error=%w", sessionId, err)
		}
		logger.Info().Msg("found session cart")
		if source.ID == target.ID {
			return fmt.Errorf("cartId=%s cannot merge into itself", cartId.String())
		}

		targetItems, err = store.FindCartItems(c, target.ID)
		if err != nil {
			return fmt.Errorf("failed finding target cart items with error=%w", err)
		}
		sourceItems, err := store.FindCartItems(c, source.ID)
		if err != nil {
			return fmt.Errorf("failed finding session cart items with error=%w", err)
		}

		byProduct := make(map[uuid.UUID]repository.CartItem, len(targetItems))
		for _, item := range targetItems {
			byProduct[item.ProductID] = item
		}

		logger = logger.With().Str(log.KeyProcess, "merging cart items").Logger()
		logger.Info().Msgf("merging %d cart items", len(sourceItems))
		for _, item := range sourceItems {
			existing, ok := byProduct[item.ProductID]
			if ok {
				// same product on both sides: sum quantities, keep the
				// target's unit price
				quantity := existing.Quantity + item.Quantity
				_, err := store.UpdateCartItem(c, repository.UpdateCartItemParams{
					ID:       existing.ID,
					CartID:   target.ID,
					Quantity: &quantity,
				})
				if err != nil {
					return fmt.Errorf(
						"failed merging productId=%s with error=%w",
						item.ProductID.String(),
						err,
					)
				}
				continue
			}
			_, err := store.UpsertCartItem(c, repository.UpsertCartItemParams{
				ID:          uuid.New(),
				CartID:      target.ID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Sku:         item.Sku,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Image:       item.Image,
				Attributes:  item.Attributes,
			})
			if err != nil {
				return fmt.Errorf(
					"failed copying productId=%s with error=%w",
					item.ProductID.String(),
					err,
				)
			}
		}
		logger.Info().Msg("merged cart items")

		logger = logger.With().Str(log.KeyProcess, "closing session cart").Logger()
		logger.Info().Msg("closing session cart")
		err = store.UpdateCartStatus(c, source.ID, repository.CartStatusMerged)
		if err != nil {
			if errors.Is(err, inErrors.ErrCartNotFound) {
				// a concurrent merge closed this session cart first; fail the
				// whole transaction so nothing is credited twice
				return inErrors.ErrSessionCartNotFound
			}
			return fmt.Errorf("failed closing session cart with error=%w", err)
		}
		logger.Info().Msg("closed session cart")

		target, targetItems, err = s.recomputeTotals(c, store, target.ID)
		if err != nil {
			return fmt.Errorf("failed recomputing totals with error=%w", err)
		}
		return nil
	})
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	cartResponse, err := target.Response(targetItems)
	if err != nil {
		err = fmt.Errorf("failed mapping cart with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	s.writeCartCache(c, target, cartResponse)
	return cartResponse, nil
}
