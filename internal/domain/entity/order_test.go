package entity_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/pedidos-api/internal/domain/entity"
)

func TestCanTransition_TablaCompleta(t *testing.T) {
	cases := []struct {
		from, to entity.OrderStatus
		want     bool
	}{
		{entity.StatusPending, entity.StatusAccepted, true},
		{entity.StatusPending, entity.StatusDeclined, true},
		{entity.StatusPending, entity.StatusCancelled, true},
		{entity.StatusPending, entity.StatusExpired, true},
		{entity.StatusPending, entity.StatusCompleted, false},
		{entity.StatusReview, entity.StatusAccepted, true},
		{entity.StatusReview, entity.StatusCancelled, true},
		{entity.StatusReview, entity.StatusDeclined, false},
		{entity.StatusAccepted, entity.StatusCompleted, true},
		{entity.StatusAccepted, entity.StatusCancelled, true},
		{entity.StatusAccepted, entity.StatusExpired, false},
		{entity.StatusCompleted, entity.StatusCancelled, false},
		{entity.StatusExpired, entity.StatusAccepted, false},
		{entity.StatusDeclined, entity.StatusAccepted, false},
		{entity.StatusCancelled, entity.StatusAccepted, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, entity.CanTransition(c.from, c.to),
			"%s -> %s", c.from, c.to)
	}
}

func TestTerminal_EstadosFinales(t *testing.T) {
	assert.True(t, entity.StatusDeclined.Terminal())
	assert.True(t, entity.StatusCompleted.Terminal())
	assert.True(t, entity.StatusCancelled.Terminal())
	assert.True(t, entity.StatusExpired.Terminal())
	assert.False(t, entity.StatusPending.Terminal())
	assert.False(t, entity.StatusAccepted.Terminal())
	assert.False(t, entity.StatusReview.Terminal())
}

func TestComputedTotal_SumaSubtotales(t *testing.T) {
	o := &entity.Order{Items: []entity.LineItem{
		{Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(25)},
		{Quantity: decimal.NewFromFloat(0.5), UnitPrice: decimal.NewFromInt(40)},
	}}
	assert.True(t, o.ComputedTotal().Equal(decimal.NewFromInt(95)), "3*25 + 0.5*40")
}

func TestReminderSent_Conjunto(t *testing.T) {
	o := &entity.Order{SentReminders: []int{2, 6}}
	assert.True(t, o.ReminderSent(2))
	assert.True(t, o.ReminderSent(6))
	assert.False(t, o.ReminderSent(24))
}
