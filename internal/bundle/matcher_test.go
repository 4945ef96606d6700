package bundle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProposePicksFirstEligibleLine(t *testing.T) {
	inv, err := NewInventory([]Line{
		{ID: "L1", VariantID: "A", Quantity: 1},
		{ID: "L2", VariantID: "A", Quantity: 3},
		{ID: "L3", VariantID: "A", Quantity: 3},
		{ID: "L4", VariantID: "B", Quantity: 1},
	})
	require.NoError(t, err)

	got, err := Propose(Definition{
		ParentVariantID: "P",
		Components:      []Component{{VariantID: "A", Quantity: 2}, {VariantID: "B", Quantity: 1}},
	}, inv)
	require.NoError(t, err)
	require.Equal(t, []Allocation{{LineID: "L2", Quantity: 2}, {LineID: "L4", Quantity: 1}}, got)
}

func TestProposeFailureLeavesInventoryUntouched(t *testing.T) {
	inv, err := NewInventory([]Line{
		{ID: "L1", VariantID: "A", Quantity: 2},
		{ID: "L2", VariantID: "B", Quantity: 1},
	})
	require.NoError(t, err)
	before := inv.Snapshot()

	_, err = Propose(Definition{
		ParentVariantID: "P",
		Components:      []Component{{VariantID: "A", Quantity: 1}, {VariantID: "B", Quantity: 2}},
	}, inv)
	var unmatched *UnmatchedError
	require.ErrorAs(t, err, &unmatched)
	require.ErrorIs(t, err, ErrInsufficientQuantity)
	require.Equal(t, "B", unmatched.Variant)
	require.EqualValues(t, 2, unmatched.Required)
	require.Equal(t, before, inv.Snapshot())
}

func TestProposeDoesNotMutateOnSuccess(t *testing.T) {
	inv, err := NewInventory([]Line{{ID: "L1", VariantID: "A", Quantity: 1}})
	require.NoError(t, err)

	_, err = Propose(Definition{ParentVariantID: "P", Components: []Component{{VariantID: "A", Quantity: 1}}}, inv)
	require.NoError(t, err)
	require.EqualValues(t, 1, inv.Remaining("L1"))
}

func TestProposeRepeatedVariantCountsClaims(t *testing.T) {
	inv, err := NewInventory([]Line{
		{ID: "L1", VariantID: "A", Quantity: 3},
		{ID: "L2", VariantID: "A", Quantity: 2},
	})
	require.NoError(t, err)

	got, err := Propose(Definition{
		ParentVariantID: "P",
		Components:      []Component{{VariantID: "A", Quantity: 2}, {VariantID: "A", Quantity: 2}},
	}, inv)
	require.NoError(t, err)
	require.Equal(t, []Allocation{{LineID: "L1", Quantity: 2}, {LineID: "L2", Quantity: 2}}, got)

	_, err = Propose(Definition{
		ParentVariantID: "P",
		Components:      []Component{{VariantID: "A", Quantity: 3}, {VariantID: "A", Quantity: 3}},
	}, inv)
	require.ErrorIs(t, err, ErrInsufficientQuantity)
}

func TestProposeNilInventory(t *testing.T) {
	_, err := Propose(snowboardBundle(), nil)
	require.ErrorIs(t, err, ErrInsufficientQuantity)
}
