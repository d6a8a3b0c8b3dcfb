// Package signal defines the per-ticker, per-day trading signal: either a
// plain direction code or a fully specified conditional order.
package signal

import "fmt"

// Signal is a sum type: Direction or *Order. The simulation loop pattern
// matches on it once per bar.
type Signal interface {
	signal()
}

// Direction is the simplified {-1, 0, +1} signal alphabet.
type Direction int8

const (
	Short Direction = -1
	Flat  Direction = 0
	Long  Direction = +1
)

func (Direction) signal() {}

func (d Direction) String() string {
	switch {
	case d > 0:
		return "long"
	case d < 0:
		return "short"
	}
	return "flat"
}

// OrderType selects the fill rule for an Order.
type OrderType int8

const (
	Market OrderType = iota
	Limit
	Stop
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	case Stop:
		return "STOP"
	}
	return fmt.Sprintf("OrderType(%d)", int8(t))
}

// Action is the order side.
type Action int8

const (
	Buy Action = iota + 1
	Sell
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Action(%d)", int8(a))
}

// Order is an immutable conditional instruction. Ticker may be left empty;
// the simulation loop fills it in from the instrument context. Units of 0
// means "size from the calculator". Price is required for Limit and Stop.
type Order struct {
	Ticker string
	Type   OrderType
	Action Action
	Units  float64
	Price  float64
}

func (*Order) signal() {}

// Validate fails fast on malformed orders.
func (o *Order) Validate() error {
	if o.Action != Buy && o.Action != Sell {
		return fmt.Errorf("order: action must be BUY or SELL, got %v", o.Action)
	}
	switch o.Type {
	case Market:
	case Limit, Stop:
		if o.Price <= 0 {
			return fmt.Errorf("order: %v requires a positive price, got %v", o.Type, o.Price)
		}
	default:
		return fmt.Errorf("order: unknown type %v", o.Type)
	}
	if o.Units < 0 {
		return fmt.Errorf("order: units must be positive when set, got %v", o.Units)
	}
	return nil
}
