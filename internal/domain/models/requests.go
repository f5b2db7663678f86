package models

// ValidateRequest asks the risk gate for a verdict without running the council.
type ValidateRequest struct {
	Signal  Signal  `json:"signal"`
	Balance float64 `json:"balance" validate:"gt=0"`
	Price   float64 `json:"price" validate:"gt=0"`
}

// BalanceRequest reports equity to the kill switch and Telos selector.
type BalanceRequest struct {
	Balance float64 `json:"balance" validate:"gte=0"`
}

type SizeRequest struct {
	Balance      float64    `json:"balance" validate:"gt=0"`
	Price        float64    `json:"price" validate:"gt=0"`
	WinRate      float64    `json:"win_rate" default:"0.55" validate:"gte=0,lte=1"`
	WinLossRatio float64    `json:"win_loss_ratio" default:"1.5" validate:"gte=0"`
	Side         Outcome    `json:"side" default:"buy" validate:"oneof=buy sell"`
	OrderBook    *OrderBook `json:"order_book,omitempty"`
}

type ImpactRequest struct {
	Amount    float64   `json:"amount" validate:"gt=0"`
	Side      Outcome   `json:"side" default:"buy" validate:"oneof=buy sell"`
	OrderBook OrderBook `json:"order_book"`
}

type ExitRequest struct {
	Current float64 `json:"current" validate:"gt=0"`
	Entry   float64 `json:"entry" validate:"gt=0"`
	Side    Outcome `json:"side" validate:"required,oneof=buy sell"`
}
