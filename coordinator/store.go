package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bikraj2/10101/orderbook"
	"github.com/bikraj2/10101/trade"
	tradeorder "github.com/bikraj2/10101/trade/order"
)

// Store is the slice of the coordinator database the notifier needs.
type Store interface {
	// OrderByTraderIDAndState returns the trader's newest order in the given
	// state, or nil when there is none.
	OrderByTraderIDAndState(ctx context.Context, traderPubkey string, state orderbook.State) (*orderbook.Order, error)
	// MatchesByOrderID returns all matches recorded for the order.
	MatchesByOrderID(ctx context.Context, orderID uuid.UUID) ([]orderbook.Match, error)
}

// PGStore implements Store on the coordinator's postgres database.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) OrderByTraderIDAndState(ctx context.Context, traderPubkey string, state orderbook.State) (*orderbook.Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, trader_pubkey, direction, quantity, price, leverage,
		       contract_symbol, order_type, order_reason, order_state,
		       timestamp, expiry
		FROM orders
		WHERE trader_pubkey = $1 AND order_state = $2
		ORDER BY timestamp DESC
		LIMIT 1`,
		traderPubkey, string(state),
	)

	var o orderbook.Order
	var direction, symbol, orderType, orderReason, orderState string
	err := row.Scan(
		&o.ID, &o.TraderPubkey, &direction, &o.Quantity, &o.Price, &o.Leverage,
		&symbol, &orderType, &orderReason, &orderState,
		&o.Timestamp, &o.Expiry,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order for trader %s: %w", traderPubkey, err)
	}

	o.Direction = trade.Direction(direction)
	o.ContractSymbol = trade.ContractSymbol(symbol)
	o.Type = tradeorder.Type(orderType)
	o.Reason = tradeorder.Reason(orderReason)
	o.State = orderbook.State(orderState)

	return &o, nil
}

func (s *PGStore) MatchesByOrderID(ctx context.Context, orderID uuid.UUID) ([]orderbook.Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.order_id, m.quantity, o.trader_pubkey, m.execution_price
		FROM matches m
		JOIN orders o ON o.id = m.match_order_id
		WHERE m.order_id = $1
		ORDER BY m.id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var matches []orderbook.Match
	for rows.Next() {
		var m orderbook.Match
		err = rows.Scan(&m.ID, &m.OrderID, &m.Quantity, &m.Pubkey, &m.ExecutionPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match for order %s: %w", orderID, err)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches for order %s: %w", orderID, err)
	}

	return matches, nil
}
