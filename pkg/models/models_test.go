package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]IntentStatus{
		{PENDING, PAID},
		{PENDING, FAILED},
		{PAID, REFUNDED},
	}
	for _, edge := range allowed {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	rejected := [][2]IntentStatus{
		{PAID, PENDING},
		{FAILED, PAID},
		{PENDING, REFUNDED},
		{REFUNDED, PAID},
		{FAILED, PENDING},
		{REFUNDED, PENDING},
		{PAID, FAILED},
	}
	for _, edge := range rejected {
		assert.False(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestReference(t *testing.T) {
	p := &PaymentIntent{}
	assert.Equal(t, "", p.Reference())

	ref := "charge_1"
	p.ExternalReference = &ref
	assert.Equal(t, "charge_1", p.Reference())
}
