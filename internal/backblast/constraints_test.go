package backblast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConstraintsHappyPath(t *testing.T) {
	groups := Partition([]Row{
		testRow(1, 10, "Q"),
		testRow(2, 11, "Co-Q"),
		testRow(3, 12, ""),
	})

	require.NoError(t, CheckConstraints(groups))
}

func TestCheckConstraintsRejectsZeroQs(t *testing.T) {
	groups := Partition([]Row{
		testRow(1, 10, ""),
		testRow(2, 11, ""),
	})

	err := CheckConstraints(groups)
	require.Error(t, err)

	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.Contains(t, err.Error(), "has no Q")
}

func TestCheckConstraintsRejectsMultipleQs(t *testing.T) {
	groups := Partition([]Row{
		testRow(1, 10, "Q"),
		testRow(2, 11, "Q"),
	})

	err := CheckConstraints(groups)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 Qs")
}

func TestCheckConstraintsRejectsDuplicateAttendance(t *testing.T) {
	groups := Partition([]Row{
		testRow(1, 10, "Q"),
		testRow(2, 10, ""),
	})

	err := CheckConstraints(groups)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate attendance for user 10")
	assert.Contains(t, err.Error(), "rows [1 2]")
}

func TestCheckConstraintsAllowsManyCoQs(t *testing.T) {
	groups := Partition([]Row{
		testRow(1, 10, "Q"),
		testRow(2, 11, "Co-Q"),
		testRow(3, 12, "Co-Q"),
		testRow(4, 13, "Co-Q"),
	})

	require.NoError(t, CheckConstraints(groups))
}

func TestCheckConstraintsPostTypeIsExact(t *testing.T) {
	// Lowercase "q" is plain attendance, not a leader role, so the group
	// has no Q at all.
	groups := Partition([]Row{
		testRow(1, 10, "q"),
		testRow(2, 11, ""),
	})

	err := CheckConstraints(groups)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no Q")
}

func TestCheckConstraintsAggregatesAcrossGroups(t *testing.T) {
	a := testRow(1, 10, "")
	b := testRow(2, 11, "Q")
	c := testRow(3, 11, "")
	b.StartDate, c.StartDate = "2024-05-02", "2024-05-02"

	err := CheckConstraints(Partition([]Row{a, b, c}))
	require.Error(t, err)

	var consErr *ConsistencyError
	require.ErrorAs(t, err, &consErr)
	assert.Len(t, consErr.Problems, 2) // no Q in group one, duplicate user in group two
}
