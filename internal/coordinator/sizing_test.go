package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copybotio/copybot/internal/domain"
)

func TestBracketPricesLong(t *testing.T) {
	stop, take := bracketPrices(dec("100"), domain.OrderSideBuy, dec("0.05"), dec("0.10"))
	assert.True(t, stop.Equal(dec("95")), "stop = %s", stop)
	assert.True(t, take.Equal(dec("110")), "take = %s", take)
}

func TestBracketPricesShort(t *testing.T) {
	stop, take := bracketPrices(dec("100"), domain.OrderSideSell, dec("0.05"), dec("0.10"))
	assert.True(t, stop.Equal(dec("105")), "stop = %s", stop)
	assert.True(t, take.Equal(dec("90")), "take = %s", take)
}

func TestPositionSizeFromRiskBudget(t *testing.T) {
	// risk 50 over a 5-point stop distance buys 10 units.
	size := positionSize(dec("100"), dec("95"), dec("50"), dec("0.1"), dec("1000"), dec("0.0001"))
	assert.True(t, size.Equal(dec("10")), "size = %s", size)
}

func TestPositionSizeClamped(t *testing.T) {
	small := positionSize(dec("100"), dec("50"), dec("1"), dec("5"), dec("1000"), dec("0.0001"))
	assert.True(t, small.Equal(dec("5")), "min clamp, got %s", small)

	big := positionSize(dec("100"), dec("99.99"), dec("1000"), dec("1"), dec("20"), dec("0.0001"))
	assert.True(t, big.Equal(dec("20")), "max clamp, got %s", big)
}

func TestPositionSizeEpsilonFloor(t *testing.T) {
	// Stop on top of the entry: the epsilon floor keeps the division finite.
	size := positionSize(dec("100"), dec("100"), dec("10"), dec("0.1"), dec("100000"), dec("0.0001"))
	assert.True(t, size.Equal(dec("1000")), "size = %s", size)
}
