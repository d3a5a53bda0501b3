package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Fee Money `json:"fee"`
	}{Fee: 5000})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fee":50.00}`, string(b))

	var in struct {
		Amount Money `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"amount":12.346}`), &in))
	assert.Equal(t, Money(1235), in.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount":"7.5"}`), &in))
	assert.Equal(t, Money(750), in.Amount)

	assert.Error(t, json.Unmarshal([]byte(`{"amount":"abc"}`), &in))
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"NaN"}`), &in))
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"+Inf"}`), &in))
}

func TestRupees(t *testing.T) {
	assert.Equal(t, Money(5000), Rupees(50))
	assert.Equal(t, Money(1), Rupees(0.005))
	assert.Equal(t, "0.10", Money(10).String())
	assert.Equal(t, Money(math.MaxInt64), Rupees(1e300))
	assert.Equal(t, Money(math.MinInt64), Rupees(-1e300))
}

func TestBookingStatus(t *testing.T) {
	for _, s := range []BookingStatus{BookingCompleted, BookingCancelledNoShow, BookingDefaulted} {
		assert.True(t, s.Terminal(), s)
		assert.False(t, s.Live(), s)
	}
	for _, s := range []BookingStatus{BookingReserved, BookingActiveParking} {
		assert.False(t, s.Terminal(), s)
		assert.True(t, s.Live(), s)
	}
}
