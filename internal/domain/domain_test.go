package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectTransitions(t *testing.T) {
	assert.True(t, ProjectPlanning.CanTransitionTo(ProjectInProgress))
	assert.True(t, ProjectReview.CanTransitionTo(ProjectCompleted))
	assert.False(t, ProjectPlanning.CanTransitionTo(ProjectCompleted))
	assert.False(t, ProjectCompleted.CanTransitionTo(ProjectCancelled))
	assert.False(t, ProjectStatus("archived").Valid())
}

func TestInvoiceRecalculate(t *testing.T) {
	inv := Invoice{
		TaxRateBps: 825,
		LineItems: []LineItem{
			{Description: "Design", Quantity: 1, UnitPriceCents: 250000},
			{Description: "Hosting", Quantity: 12, UnitPriceCents: 1999},
		},
	}
	inv.Recalculate()
	assert.Equal(t, int64(273988), inv.SubtotalCents)
	assert.Equal(t, int64(22604), inv.TaxCents)
	assert.Equal(t, int64(296592), inv.TotalCents)
}

func TestInvoiceRecalculateAtLimits(t *testing.T) {
	inv := Invoice{TaxRateBps: 10000}
	for i := 0; i < MaxLineItems; i++ {
		inv.LineItems = append(inv.LineItems, LineItem{Quantity: MaxLineItemQuantity, UnitPriceCents: MaxLineItemPriceCents})
	}
	inv.Recalculate()
	assert.Equal(t, int64(100_000_000_000_000_000), inv.SubtotalCents)
	assert.Equal(t, inv.SubtotalCents, inv.TaxCents)
	assert.Equal(t, 2*inv.SubtotalCents, inv.TotalCents)
}

func TestTimeEntryAmount(t *testing.T) {
	e := TimeEntry{Minutes: 90, RateCents: 12000, Billable: true}
	assert.Equal(t, int64(18000), e.AmountCents())
	e.Billable = false
	assert.Zero(t, e.AmountCents())
}
