package common_test

import (
	"testing"

	. "lob/internal/common"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTicks(t *testing.T) {
	tick := decimal.RequireFromString("0.01")

	price, err := ToTicks(decimal.RequireFromString("100.25"), tick)
	require.NoError(t, err)
	assert.Equal(t, Price(10025), price)

	price, err = ToTicks(decimal.Zero, tick)
	require.NoError(t, err)
	assert.Equal(t, Price(0), price)

	_, err = ToTicks(decimal.RequireFromString("100.255"), tick)
	assert.ErrorIs(t, err, ErrOffTick)

	_, err = ToTicks(decimal.RequireFromString("-1"), tick)
	assert.ErrorIs(t, err, ErrNegativePrice)

	_, err = ToTicks(decimal.RequireFromString("1"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidTickSize)
}

func TestFromTicks(t *testing.T) {
	tick := decimal.RequireFromString("0.05")
	assert.True(t, FromTicks(2001, tick).Equal(decimal.RequireFromString("100.05")))
}

func TestTrade_Legs(t *testing.T) {
	trade := Trade{
		Buy:  TradeLeg{OrderID: 1, Price: 99, Quantity: 3},
		Sell: TradeLeg{OrderID: 2, Price: 99, Quantity: 3},
	}
	assert.Equal(t, OrderID(1), trade.Leg(Buy).OrderID)
	assert.Equal(t, OrderID(2), trade.Leg(Sell).OrderID)
	assert.Equal(t, Price(99), trade.Price())
	assert.Equal(t, Quantity(6), Trades{trade, trade}.Executed())
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, "SELL", Sell.String())
}
