package types

// LotteryType identifies which draw's numbers the compute function generates.
// The set is closed; catalog.Validate rejects anything else.
type LotteryType string

const (
	LotteryPowerball LotteryType = "powerball"
	LotteryLotto     LotteryType = "lotto"
	LotteryDaily     LotteryType = "daily"
)

// LotteryTypes lists the closed set in canonical order.
var LotteryTypes = []LotteryType{LotteryPowerball, LotteryLotto, LotteryDaily}

// ComputeMode selects how the compute function is reached.
type ComputeMode string

const (
	ComputeModeLambda ComputeMode = "lambda"
	ComputeModeHTTP   ComputeMode = "http"
)

// DispatchResult is the outcome label attached to dispatch metrics.
type DispatchResult string

const (
	DispatchSuccess    DispatchResult = "success"
	DispatchFailed     DispatchResult = "failed"
	DispatchUnresolved DispatchResult = "unresolved"
)
