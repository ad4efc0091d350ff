package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/asktable/frame"
)

const messyCSV = `Customer Name,Amount,Region,Score
Alice,"$1,200",North,1.0
Bob,$300,South,2.0
Alice,"$1,200",North,1.0
Carol,,North,
`

func readCSV(t *testing.T, data string) *frame.DataFrame {
	t.Helper()
	df, err := frame.ReadCSV(strings.NewReader(data), frame.WithFrameName("messy"))
	require.NoError(t, err)
	return df
}

func TestAssess(t *testing.T) {
	r := Assess(readCSV(t, messyCSV))

	assert.Equal(t, 4, r.Rows)
	assert.Equal(t, 16, r.TotalCells)
	assert.Equal(t, 2, r.MissingCells)
	assert.InDelta(t, 12.5, r.MissingPercent, 1e-9)
	assert.Equal(t, 1, r.MissingByColumn["Amount"])
	assert.Equal(t, 1, r.DuplicateRows)
	assert.InDelta(t, 25, r.DuplicatePercent, 1e-9)

	require.Len(t, r.Suggestions, 3)
	assert.Equal(t, "Amount", r.Suggestions[0].Column)
	assert.Equal(t, "float64", r.Suggestions[0].To)
	assert.Equal(t, "Region", r.Suggestions[1].Column)
	assert.Equal(t, "category", r.Suggestions[1].To)
	assert.Equal(t, "Score", r.Suggestions[2].Column)
	assert.Equal(t, "int64", r.Suggestions[2].To)

	assert.Equal(t, []string{"1 duplicate rows", `column "Amount" holds numbers stored as text`}, r.Issues)
	assert.InDelta(t, 100-12.5-25-4, r.Score, 1e-9)

	text := r.String()
	assert.Contains(t, text, "Data quality score: 58.5/100")
	assert.Contains(t, text, "Amount: object -> float64")
	assert.Contains(t, text, "- 1 duplicate rows")
}

func TestAssessCleanData(t *testing.T) {
	r := Assess(readCSV(t, "a,b\n1,x\n2,y\n3,z\n"))
	assert.Equal(t, 100.0, r.Score)
	assert.Empty(t, r.Issues)
	assert.NotContains(t, r.String(), "Missing by column")
}

func TestAssessScoreClamped(t *testing.T) {
	r := Assess(readCSV(t, "a,b,c\n,,\n,,\n1,,\n"))
	assert.GreaterOrEqual(t, r.Score, 0.0)
	assert.Contains(t, r.Issues, `column "b" is 100% missing`)
}

func TestParseNumericText(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,200", 1200, true},
		{"€3.50", 3.5, true},
		{"(45)", -45, true},
		{"-$7", -7, true},
		{"12%", 12, true},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseNumericText(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.InDelta(t, tc.want, got, 1e-9, tc.in)
		}
	}
}

func TestAutoClean(t *testing.T) {
	src := readCSV(t, messyCSV)
	c := NewCleaner(src)

	df, err := c.AutoClean(false)
	require.NoError(t, err)

	assert.Equal(t, []string{"customer_name", "amount", "region", "score"}, df.Columns())
	assert.Equal(t, 3, df.Len())
	assert.Zero(t, df.TotalNulls())

	amount, err := df.Column("amount")
	require.NoError(t, err)
	assert.Equal(t, frame.Float, amount.DType())
	v, _ := amount.Float(2)
	assert.Equal(t, 750.0, v)

	score, _ := df.Column("score")
	v, _ = score.Float(2)
	assert.Equal(t, 1.5, v)

	log := c.Log()
	assert.Contains(t, log, "cleaned 4 column names")
	assert.Contains(t, log, `converted "amount" to numeric`)
	assert.Contains(t, log, "dropped 1 duplicate rows")
	assert.Contains(t, log, `filled 1 missing values in "amount" with median 750`)

	// the source frame is untouched
	assert.Equal(t, 4, src.Len())
	assert.True(t, src.HasColumn("Customer Name"))
}

func TestAutoCleanFillsMode(t *testing.T) {
	df, err := NewCleaner(readCSV(t, "id,city\n1,Paris\n2,Rome\n3,Paris\n4,\n")).AutoClean(false)
	require.NoError(t, err)

	city, _ := df.Column("city")
	assert.Equal(t, "Paris", city.Format(3))
}

func TestAutoCleanAggressive(t *testing.T) {
	data := "id,v,sparse\n1,10,\n2,11,\n3,12,\n4,13,x\n5,12,\n6,11,\n7,10,\n8,100,\n"
	c := NewCleaner(readCSV(t, data))

	df, err := c.AutoClean(true)
	require.NoError(t, err)

	assert.False(t, df.HasColumn("sparse"))
	v, _ := df.Column("v")
	last, _ := v.Float(7)
	assert.InDelta(t, 14.5, last, 1e-9)

	assert.Contains(t, c.Log(), "dropped 1 mostly empty columns: sparse")
	assert.Contains(t, c.Log(), `capped 1 outliers in "v" to [8.50, 14.50]`)
}
