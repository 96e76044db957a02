// Package catalog enumerates the lottery types the compute function accepts
// and validates GameSpecs against them.
package catalog

import (
	"fmt"

	"lottodispatch/internal/types"
)

// MaxBoardCount bounds the number of boards a single GameSpec may request.
const MaxBoardCount = 10

// defaultBoards is the board count the draw-night schedules use for each type.
var defaultBoards = map[types.LotteryType]int{
	types.LotteryPowerball: 2,
	types.LotteryLotto:     2,
	types.LotteryDaily:     2,
}

// Types returns the closed set of lottery types in canonical order.
func Types() []types.LotteryType {
	return append([]types.LotteryType(nil), types.LotteryTypes...)
}

// IsValid reports whether lt belongs to the closed set.
func IsValid(lt types.LotteryType) bool {
	_, ok := defaultBoards[lt]
	return ok
}

// Parse converts a raw string into a LotteryType.
func Parse(s string) (types.LotteryType, error) {
	lt := types.LotteryType(s)
	if !IsValid(lt) {
		return "", invalidType(lt)
	}
	return lt, nil
}

// DefaultBoards returns the customary board count for lt, or 0 if lt is not
// in the catalog.
func DefaultBoards(lt types.LotteryType) int {
	return defaultBoards[lt]
}

// Validate checks that g names a known lottery type and requests between 1
// and MaxBoardCount boards.
func Validate(g types.GameSpec) error {
	if !IsValid(g.LotteryType) {
		return invalidType(g.LotteryType)
	}
	if g.BoardCount < 1 || g.BoardCount > MaxBoardCount {
		return types.NewAppErrorWithDetails(
			types.ErrCodeConfigInvalidBoardCount,
			fmt.Sprintf("boardCount %d for %s must be between 1 and %d", g.BoardCount, g.LotteryType, MaxBoardCount),
			nil,
			map[string]any{"lottery_type": string(g.LotteryType), "board_count": g.BoardCount},
		)
	}
	return nil
}

func invalidType(lt types.LotteryType) *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeConfigInvalidLotteryType,
		fmt.Sprintf("unknown lottery type %q (want one of %v)", lt, types.LotteryTypes),
		nil,
		map[string]any{"lottery_type": string(lt)},
	)
}
