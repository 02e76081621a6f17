// Package trade holds the primitives shared between the trader-side order
// and position state machines.
package trade

type Direction string

const (
	DirectionLong  Direction = "Long"
	DirectionShort Direction = "Short"
)

func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

type ContractSymbol string

const (
	ContractSymbolBtcUsd ContractSymbol = "BtcUsd"
)
