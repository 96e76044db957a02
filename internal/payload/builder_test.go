package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottodispatch/internal/schedule"
	"lottodispatch/internal/types"
)

func TestRender_WithoutExcludeTypes(t *testing.T) {
	s := types.Schedule{
		Name: "full",
		Games: []types.GameSpec{
			{LotteryType: types.LotteryPowerball, BoardCount: 2},
			{LotteryType: types.LotteryDaily, BoardCount: 2},
		},
		SendMail: true,
	}

	got, err := Render(s)
	require.NoError(t, err)
	assert.Equal(t,
		`{"games":[{"lotteryType":"powerball","boardCount":2},{"lotteryType":"daily","boardCount":2}],"sendMail":true}`,
		string(got))
}

func TestRender_WithExcludeTypes(t *testing.T) {
	s := types.Schedule{
		Name:         "daily-only",
		Games:        []types.GameSpec{{LotteryType: types.LotteryDaily, BoardCount: 3}},
		SendMail:     true,
		ExcludeTypes: []types.LotteryType{types.LotteryPowerball},
	}

	got, err := Render(s)
	require.NoError(t, err)
	assert.Equal(t,
		`{"games":[{"lotteryType":"daily","boardCount":3}],"sendMail":true,"excludeTypes":["powerball"]}`,
		string(got))
}

func TestRender_EmptyExcludeTypesOmitted(t *testing.T) {
	s := types.Schedule{
		Games:        []types.GameSpec{{LotteryType: types.LotteryLotto, BoardCount: 1}},
		ExcludeTypes: []types.LotteryType{},
	}

	got, err := Render(s)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "excludeTypes")
	assert.Contains(t, string(got), `"sendMail":false`)
}

func TestBuild_DoesNotAliasSchedule(t *testing.T) {
	s := types.Schedule{
		Games:        []types.GameSpec{{LotteryType: types.LotteryLotto, BoardCount: 2}},
		ExcludeTypes: []types.LotteryType{types.LotteryDaily},
	}

	p := Build(s)
	p.Games[0].BoardCount = 8
	p.ExcludeTypes[0] = types.LotteryPowerball

	assert.Equal(t, 2, s.Games[0].BoardCount)
	assert.Equal(t, types.LotteryDaily, s.ExcludeTypes[0])
}

func TestRender_IdempotentForDefaultTable(t *testing.T) {
	table, err := schedule.Default()
	require.NoError(t, err)

	for _, s := range table.All() {
		t.Run(s.Name, func(t *testing.T) {
			first, err := Render(s)
			require.NoError(t, err)
			second, err := Render(s)
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Equal(t, Digest(first), Digest(second))

			var decoded map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(first, &decoded))
			_, hasExclude := decoded["excludeTypes"]
			assert.Equal(t, len(s.ExcludeTypes) > 0, hasExclude)
		})
	}
}

func TestDigest(t *testing.T) {
	a := Digest([]byte(`{"games":[],"sendMail":true}`))
	b := Digest([]byte(`{"games":[],"sendMail":false}`))

	assert.Len(t, a, digestLen)
	assert.NotEqual(t, a, b)
}
