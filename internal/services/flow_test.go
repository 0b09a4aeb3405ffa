package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/estoque-backend/internal/inventory"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
)

func mustCategory(t *testing.T, key int) inventory.Category {
	t.Helper()
	c, ok := inventory.CategoryByKey(key)
	require.True(t, ok)
	return c
}

func TestStep_AwaitingPrice(t *testing.T) {
	tr, err := Step(models.SessionStateAwaitingPrice, "7,50")
	require.NoError(t, err)
	assert.True(t, tr.Accepted)
	assert.False(t, tr.Done())
	assert.Equal(t, models.SessionStateAwaitingCategory, tr.Next)
	assert.True(t, tr.Price.Equal(decimal.RequireFromString("7.5")))

	tr, err = Step(models.SessionStateAwaitingPrice, "paguei R$ 12,499")
	require.NoError(t, err)
	assert.True(t, tr.Price.Equal(decimal.RequireFromString("12.5")))

	for answer, want := range map[string]string{"1.234": "1234", "1.234,50": "1234.5", "R$ 2.000": "2000"} {
		tr, err = Step(models.SessionStateAwaitingPrice, answer)
		require.NoError(t, err)
		assert.True(t, tr.Price.Equal(decimal.RequireFromString(want)), "%s => %s", answer, tr.Price)
	}

	for _, answer := range []string{"caro", "0", "0,00", ""} {
		tr, err = Step(models.SessionStateAwaitingPrice, answer)
		require.NoError(t, err)
		assert.False(t, tr.Accepted, answer)
		assert.Equal(t, models.SessionStateAwaitingPrice, tr.Next, answer)
	}
}

func TestStep_AwaitingCategory(t *testing.T) {
	tr, err := Step(models.SessionStateAwaitingCategory, "4")
	require.NoError(t, err)
	assert.True(t, tr.Done())
	assert.Equal(t, mustCategory(t, 4), tr.Category)

	tr, err = Step(models.SessionStateAwaitingCategory, "açougue")
	require.NoError(t, err)
	assert.True(t, tr.Done())
	assert.Equal(t, "Carnes", tr.Category.Label)

	tr, err = Step(models.SessionStateAwaitingCategory, "7,50")
	require.NoError(t, err)
	assert.False(t, tr.Accepted, "no way back to the price")
	assert.Equal(t, models.SessionStateAwaitingCategory, tr.Next)

	tr, err = Step(models.SessionStateAwaitingCategory, "11")
	require.NoError(t, err)
	assert.False(t, tr.Accepted)
}

func TestStep_UnknownState(t *testing.T) {
	_, err := Step("awaiting_name", "arroz")
	assert.Error(t, err)
}
