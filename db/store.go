package db

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bikraj2/10101/node"
	"github.com/bikraj2/10101/trade"
	"github.com/bikraj2/10101/trade/order"
	"github.com/bikraj2/10101/trade/position"
)

// ErrNotFound is reported when a row the caller expected does not exist.
var ErrNotFound = errors.New("record not found")

// Store implements the CRUD-shaped accessors consumed by the order state
// machine, the position handler and the node payment pipeline. Each method
// is atomic; callers never get cross-call transactions.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// orders

func (s *Store) InsertOrder(o *order.Order) error {
	row := orderToRow(o)
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOrderState commits the transition only when the stored state is a
// valid predecessor of the target state. A transition that lost the race
// against a concurrently committed one reports order.ErrStateConflict and
// changes nothing: whichever write reached the store first wins.
func (s *Store) UpdateOrderState(id uuid.UUID, state order.State, executionPrice *decimal.Decimal, reason *order.FailureReason) (*order.Order, error) {
	var updated *order.Order

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if state == order.StateFilling {
			// At most one order may be in Filling at any time.
			var n int64
			if err := tx.Model(&Order{}).
				Where("state = ? AND id <> ?", string(order.StateFilling), id.String()).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("another order is already being filled: %w", order.ErrStateConflict)
			}
		}

		updates := map[string]interface{}{"state": string(state)}
		if executionPrice != nil {
			updates["execution_price"] = *executionPrice
		}
		if reason != nil {
			updates["failure_reason"] = string(*reason)
		}

		predecessors := order.ValidPredecessors(state)
		states := make([]string, len(predecessors))
		for i, p := range predecessors {
			states[i] = string(p)
		}

		res := tx.Model(&Order{}).
			Where("id = ? AND state IN ?", id.String(), states).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing Order
			found := tx.Limit(1).Find(&existing, "id = ?", id.String())
			if found.Error != nil {
				return found.Error
			}
			if found.RowsAffected == 0 {
				return fmt.Errorf("order %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("cannot transition order %s from %s to %s: %w",
				id, existing.State, state, order.ErrStateConflict)
		}

		var row Order
		if err := tx.First(&row, "id = ?", id.String()).Error; err != nil {
			return err
		}
		updated = rowToOrder(&row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MaybeGetOrderInFilling returns the order currently being filled, nil if
// there is none.
func (s *Store) MaybeGetOrderInFilling() (*order.Order, error) {
	var row Order
	res := s.db.Limit(1).Find(&row, "state = ?", string(order.StateFilling))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return rowToOrder(&row), nil
}

// MaybeGetOpenOrders returns every order that has not reached a terminal
// state yet.
func (s *Store) MaybeGetOpenOrders() ([]*order.Order, error) {
	var rows []Order
	nonTerminal := []string{
		string(order.StateInitial),
		string(order.StateOpen),
		string(order.StateFilling),
	}
	if err := s.db.Find(&rows, "state IN ?", nonTerminal).Error; err != nil {
		return nil, err
	}

	orders := make([]*order.Order, len(rows))
	for i := range rows {
		orders[i] = rowToOrder(&rows[i])
	}
	return orders, nil
}

// GetAsyncOrder returns the latest non-terminal order that was generated on
// the trader's behalf (an expired limit order matched while offline), nil if
// there is none.
func (s *Store) GetAsyncOrder() (*order.Order, error) {
	var row Order
	nonTerminal := []string{
		string(order.StateInitial),
		string(order.StateOpen),
		string(order.StateFilling),
	}
	res := s.db.
		Where("order_reason = ? AND state IN ?", string(order.ReasonExpired), nonTerminal).
		Order("creation_timestamp desc").
		Limit(1).
		Find(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return rowToOrder(&row), nil
}

// Order loads a single order by id.
func (s *Store) Order(id uuid.UUID) (*order.Order, error) {
	var row Order
	res := s.db.Limit(1).Find(&row, "id = ?", id.String())
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return rowToOrder(&row), nil
}

// positions

func (s *Store) MaybeGetPosition(symbol trade.ContractSymbol) (*position.Position, error) {
	var row Position
	res := s.db.Limit(1).Find(&row, "contract_symbol = ?", string(symbol))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return rowToPosition(&row), nil
}

func (s *Store) InsertPosition(p *position.Position) error {
	row := positionToRow(p)
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert position for %s: %w", p.ContractSymbol, err)
	}
	return nil
}

// SetPositionState is idempotent: setting the state a position is already in
// changes nothing.
func (s *Store) SetPositionState(symbol trade.ContractSymbol, state position.State) error {
	res := s.db.Model(&Position{}).
		Where("contract_symbol = ?", string(symbol)).
		Update("state", string(state))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("position for %s: %w", symbol, ErrNotFound)
	}
	return nil
}

func (s *Store) DeletePosition(symbol trade.ContractSymbol) error {
	return s.db.Delete(&Position{}, "contract_symbol = ?", string(symbol)).Error
}

// payments (node.Storage)

func (s *Store) GetPayment(hash lntypes.Hash) (*node.PaymentInfo, error) {
	var row Payment
	res := s.db.Limit(1).Find(&row, "payment_hash = ?", hash.String())
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return rowToPayment(&row)
}

func (s *Store) InsertPayment(hash lntypes.Hash, info node.PaymentInfo) error {
	row := paymentToRow(hash, info)
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert payment %s: %w", hash, err)
	}
	return nil
}

// UpdatePayment records the terminal outcome delivered by the
// payment-completion callback.
func (s *Store) UpdatePayment(hash lntypes.Hash, status node.HTLCStatus, preimage *lntypes.Preimage, feeMsat *uint64) error {
	updates := map[string]interface{}{"status": string(status)}
	if preimage != nil {
		updates["preimage"] = preimage.String()
	}
	if feeMsat != nil {
		updates["fee_msat"] = *feeMsat
	}
	res := s.db.Model(&Payment{}).
		Where("payment_hash = ?", hash.String()).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment %s: %w", hash, ErrNotFound)
	}
	return nil
}

// channels (node.Storage)

func (s *Store) UpsertChannel(channel node.Channel) error {
	row := Channel{
		UserChannelID:     channel.UserChannelID.String(),
		TraderPubkey:      channel.TraderPubkey,
		State:             string(channel.State),
		LiquidityOptionID: channel.LiquidityOptionID,
		FundingTxid:       channel.FundingTxid,
		CreatedAt:         channel.CreatedAt,
		UpdatedAt:         time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_channel_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// row conversions

func orderToRow(o *order.Order) Order {
	var reason *string
	if o.FailureReason != nil {
		r := string(*o.FailureReason)
		reason = &r
	}
	return Order{
		ID:                o.ID.String(),
		TraderPubkey:      o.TraderPubkey,
		Direction:         string(o.Direction),
		Quantity:          o.Quantity,
		Price:             o.Price,
		Leverage:          o.Leverage,
		ContractSymbol:    string(o.ContractSymbol),
		OrderType:         string(o.Type),
		OrderReason:       string(o.Reason),
		State:             string(o.State),
		ExecutionPrice:    o.ExecutionPrice,
		FailureReason:     reason,
		CreationTimestamp: o.CreationTimestamp,
		Expiry:            o.Expiry,
	}
}

func rowToOrder(row *Order) *order.Order {
	var reason *order.FailureReason
	if row.FailureReason != nil {
		r := order.FailureReason(*row.FailureReason)
		reason = &r
	}
	return &order.Order{
		ID:                uuid.MustParse(row.ID),
		TraderPubkey:      row.TraderPubkey,
		Direction:         trade.Direction(row.Direction),
		Quantity:          row.Quantity,
		Price:             row.Price,
		Leverage:          row.Leverage,
		ContractSymbol:    trade.ContractSymbol(row.ContractSymbol),
		Type:              order.Type(row.OrderType),
		Reason:            order.Reason(row.OrderReason),
		State:             order.State(row.State),
		ExecutionPrice:    row.ExecutionPrice,
		FailureReason:     reason,
		CreationTimestamp: row.CreationTimestamp,
		Expiry:            row.Expiry,
	}
}

func positionToRow(p *position.Position) Position {
	return Position{
		TraderPubkey:   p.TraderPubkey,
		ContractSymbol: string(p.ContractSymbol),
		Direction:      string(p.Direction),
		Quantity:       p.Quantity,
		AverageEntry:   p.AverageEntry,
		Leverage:       p.Leverage,
		State:          string(p.State),
	}
}

func rowToPosition(row *Position) *position.Position {
	return &position.Position{
		TraderPubkey:   row.TraderPubkey,
		ContractSymbol: trade.ContractSymbol(row.ContractSymbol),
		Direction:      trade.Direction(row.Direction),
		Quantity:       row.Quantity,
		AverageEntry:   row.AverageEntry,
		Leverage:       row.Leverage,
		State:          position.State(row.State),
	}
}

func paymentToRow(hash lntypes.Hash, info node.PaymentInfo) Payment {
	var preimage *string
	if info.Preimage != nil {
		p := info.Preimage.String()
		preimage = &p
	}
	var secret *string
	if info.Secret != nil {
		sec := hex.EncodeToString(info.Secret[:])
		secret = &sec
	}
	var amountMsat *uint64
	if info.AmountMsat != nil {
		a := uint64(*info.AmountMsat)
		amountMsat = &a
	}
	var feeMsat *uint64
	if info.FeeMsat != nil {
		f := uint64(*info.FeeMsat)
		feeMsat = &f
	}
	return Payment{
		PaymentHash: hash.String(),
		Preimage:    preimage,
		Secret:      secret,
		Status:      string(info.Status),
		AmountMsat:  amountMsat,
		FeeMsat:     feeMsat,
		Flow:        string(info.Flow),
		Timestamp:   info.Timestamp,
		Description: info.Description,
		Invoice:     info.Invoice,
	}
}

func rowToPayment(row *Payment) (*node.PaymentInfo, error) {
	info := node.PaymentInfo{
		Status:      node.HTLCStatus(row.Status),
		Flow:        node.PaymentFlow(row.Flow),
		Timestamp:   row.Timestamp,
		Description: row.Description,
		Invoice:     row.Invoice,
	}
	if row.Preimage != nil {
		preimage, err := lntypes.MakePreimageFromStr(*row.Preimage)
		if err != nil {
			return nil, fmt.Errorf("invalid preimage for payment %s: %w", row.PaymentHash, err)
		}
		info.Preimage = &preimage
	}
	if row.Secret != nil {
		secretBytes, err := hex.DecodeString(*row.Secret)
		if err != nil || len(secretBytes) != 32 {
			return nil, fmt.Errorf("invalid payment secret for payment %s", row.PaymentHash)
		}
		var secret [32]byte
		copy(secret[:], secretBytes)
		info.Secret = &secret
	}
	if row.AmountMsat != nil {
		amt := lnwire.MilliSatoshi(*row.AmountMsat)
		info.AmountMsat = &amt
	}
	if row.FeeMsat != nil {
		fee := lnwire.MilliSatoshi(*row.FeeMsat)
		info.FeeMsat = &fee
	}
	return &info, nil
}
