package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := map[string]int64{
		"75":     7500,
		"75.5":   7550,
		"75.00":  7500,
		"0.01":   1,
		".5":     50,
		"-12.30": -1230,
		"10.500": 1050,
	}
	for in, want := range cases {
		m, err := ParseMoney(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, m.Minor(), in)
	}

	for _, bad := range []string{"", "abc", "1.005", "1.2.3", "--5", "+-5", "5.-1", "1e3"} {
		_, err := ParseMoney(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseMoney_Overflow(t *testing.T) {
	largest, err := ParseMoney("92233720368547758.07")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), largest.Minor())

	for _, huge := range []string{"92233720368547758.08", "92233720368547759", "99999999999999999999", "-92233720368547759"} {
		_, err := ParseMoney(huge)
		assert.ErrorIs(t, err, ErrAmountOutOfRange, huge)
	}
}

func TestMoney_MulBasisPointsRounding(t *testing.T) {
	mul := func(m Money, bp int64) Money {
		t.Helper()
		out, err := m.MulBasisPoints(bp)
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, Money(3000), mul(2500, 12000))
	assert.Equal(t, Money(1), mul(1, 12000))
	// half a cent rounds away from zero
	assert.Equal(t, Money(3), mul(2, 12500))
	assert.Equal(t, Money(-3), mul(-2, 12500))
}

func TestMoney_MulBasisPointsOverflow(t *testing.T) {
	_, err := Money(math.MaxInt64 / 2).MulBasisPoints(12000)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)

	_, err = Money(math.MinInt64).MulBasisPoints(10000)
	assert.ErrorIs(t, err, ErrAmountOutOfRange)

	_, err = Money(100).MulBasisPoints(-1)
	assert.Error(t, err)
}

func TestMoney_JSON(t *testing.T) {
	raw, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: NewMoney(75, 5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"75.05"}`, string(raw))

	var fromNumber struct {
		Total Money `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"total":12.5}`), &fromNumber))
	assert.Equal(t, "12.50", fromNumber.Total.String())
}

func TestMoney_Scan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan([]byte("125.40")))
	assert.Equal(t, NewMoney(125, 40), m)
	require.NoError(t, m.Scan(int64(3)))
	assert.Equal(t, NewMoney(3, 0), m)
	assert.Error(t, m.Scan(1.5))
}
