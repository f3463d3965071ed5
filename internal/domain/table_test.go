package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawTable() Table {
	return Table{
		Header: []string{"Row_ID", ColCaseReportedDate, "Age_Group", ColReportingPHU, ColPHULatitude, ColPHULongitude, "Outcome1"},
		Rows: [][]string{
			{"1", "2020-05-05", "20s", "UnitA", "20.0", "10.0", "Resolved"},
			{"2", "2020-05-06", "30s", "UnitB", "21.0", "11.0", "Fatal"},
		},
	}
}

func TestPruneColumns_KeepsIntersectionInInputOrder(t *testing.T) {
	in := rawTable()

	out := PruneColumns(in, CaseColumns)

	assert.Equal(t, []string{ColCaseReportedDate, ColReportingPHU, ColPHULatitude, ColPHULongitude}, out.Header)
	require.Len(t, out.Rows, len(in.Rows))
	assert.Equal(t, []string{"2020-05-05", "UnitA", "20.0", "10.0"}, out.Rows[0])
	assert.Equal(t, []string{"2020-05-06", "UnitB", "21.0", "11.0"}, out.Rows[1])
}

func TestPruneColumns_DoesNotMutateInput(t *testing.T) {
	in := rawTable()
	before := rawTable()

	out := PruneColumns(in, CaseColumns)
	out.Rows[0][0] = "changed"
	out.Header[0] = "changed"

	assert.Equal(t, before, in)
}

func TestPruneColumns_MissingAllowListedColumnsIgnored(t *testing.T) {
	in := Table{
		Header: []string{"x", ColReportingPHU},
		Rows:   [][]string{{"1", "UnitA"}},
	}

	out := PruneColumns(in, CaseColumns)

	assert.Equal(t, []string{ColReportingPHU}, out.Header)
	assert.Equal(t, [][]string{{"UnitA"}}, out.Rows)
}

func TestPruneColumns_EmptyAllowList(t *testing.T) {
	out := PruneColumns(rawTable(), nil)

	assert.Empty(t, out.Header)
	assert.Len(t, out.Rows, 2)
	for _, row := range out.Rows {
		assert.Empty(t, row)
	}
}

func TestTable_MustIndex(t *testing.T) {
	tbl := rawTable()

	i, err := tbl.MustIndex(ColReportingPHU)
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	_, err = tbl.MustIndex("nope")
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "nope")
}

func TestTable_Validate(t *testing.T) {
	tbl := rawTable()
	require.NoError(t, tbl.Validate())

	tbl.Rows = append(tbl.Rows, []string{"short"})
	err := tbl.Validate()
	require.ErrorIs(t, err, ErrRaggedRow)
	assert.Contains(t, err.Error(), "row 3")
}
