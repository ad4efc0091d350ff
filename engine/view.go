package engine

// ============================================================================
// RECORD VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never owns the caller's data. It reads through this interface.
//
// Implementations:
//   frame.DataFrame — columnar dataframe (non-numeric columns are dimensions)
//   SubView         — filtered subset (indices into parent, zero-copy)
//   ConcatView      — virtual concatenation of two views
//   periodView      — year/quarter/month dimensions derived from a date column
//   countingView    — synthetic record_count measure
// ============================================================================

// RecordView provides indexed access to a dataset.
// The engine calls Dimension/Measure in tight loops — keep implementations fast.
type RecordView interface {
	Len() int
	Dimension(index int, key string) string
	Measure(index int, key string) float64
	DimensionKeys() []string // available dimension keys
	MeasureKeys() []string   // available measure keys
}

// ============================================================================
// SUB VIEW — filtered subset (zero-copy)
// ============================================================================

// SubView is a filtered subset of a parent RecordView.
// Holds indices into the parent — no data copy.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Dimension(v.indices[i], key)
}

func (v *SubView) Measure(i int, key string) float64 {
	if i < 0 || i >= len(v.indices) {
		return 0
	}
	return v.parent.Measure(v.indices[i], key)
}

func (v *SubView) DimensionKeys() []string { return v.parent.DimensionKeys() }
func (v *SubView) MeasureKeys() []string   { return v.parent.MeasureKeys() }

// ============================================================================
// CONCAT VIEW — virtual concatenation of two views
// ============================================================================

// ConcatView logically concatenates two RecordViews.
// Used for ratio period derivation without data copy.
type ConcatView struct {
	a, b RecordView
}

func newConcatView(a, b RecordView) RecordView {
	return &ConcatView{a: a, b: b}
}

func (v *ConcatView) Len() int { return v.a.Len() + v.b.Len() }

func (v *ConcatView) Dimension(i int, key string) string {
	if i < v.a.Len() {
		return v.a.Dimension(i, key)
	}
	return v.b.Dimension(i-v.a.Len(), key)
}

func (v *ConcatView) Measure(i int, key string) float64 {
	if i < v.a.Len() {
		return v.a.Measure(i, key)
	}
	return v.b.Measure(i-v.a.Len(), key)
}

func (v *ConcatView) DimensionKeys() []string { return v.a.DimensionKeys() }
func (v *ConcatView) MeasureKeys() []string   { return v.a.MeasureKeys() }

// ============================================================================
// PERIOD VIEW — virtual year/quarter/month dimensions
// ============================================================================

// Virtual dimensions derived from the temporal dimension.
const (
	PeriodYear    = "year"
	PeriodQuarter = "quarter"
	PeriodMonth   = "month"
)

// periodView exposes year, quarter and month buckets of a temporal
// dimension when the parent does not already have columns by those names.
// The virtual keys are readable but not listed in DimensionKeys, so list
// tables show only real columns.
type periodView struct {
	RecordView
	temporal string
	virtual  map[string]bool
}

func withPeriods(parent RecordView, temporal string) RecordView {
	if temporal == "" {
		return parent
	}
	existing := make(map[string]bool)
	for _, k := range parent.DimensionKeys() {
		existing[k] = true
	}
	for _, k := range parent.MeasureKeys() {
		existing[k] = true
	}
	if !existing[temporal] {
		return parent
	}

	v := &periodView{RecordView: parent, temporal: temporal, virtual: make(map[string]bool)}
	for _, k := range []string{PeriodYear, PeriodQuarter, PeriodMonth} {
		if !existing[k] {
			v.virtual[k] = true
		}
	}
	if len(v.virtual) == 0 {
		return parent
	}
	return v
}

func (v *periodView) Dimension(i int, key string) string {
	if v.virtual[key] {
		p, ok := ParsePeriod(v.RecordView.Dimension(i, v.temporal))
		if !ok {
			return ""
		}
		switch key {
		case PeriodYear:
			return p.YearLabel()
		case PeriodQuarter:
			return p.QuarterLabel()
		default:
			return p.MonthLabel()
		}
	}
	return v.RecordView.Dimension(i, key)
}

// virtualKeys returns the derived dimensions a view answers to beyond its
// DimensionKeys.
func virtualKeys(view RecordView) map[string]bool {
	if pv, ok := view.(*periodView); ok {
		return pv.virtual
	}
	return nil
}

// ============================================================================
// COUNTING VIEW — synthetic record_count measure
// ============================================================================

type countingView struct {
	RecordView
}

func withRecordCount(parent RecordView) RecordView {
	if containsKey(parent.MeasureKeys(), RecordCountMeasure) {
		return parent
	}
	return countingView{parent}
}

func (v countingView) Measure(i int, key string) float64 {
	if key == RecordCountMeasure {
		if i < 0 || i >= v.Len() {
			return 0
		}
		return 1
	}
	return v.RecordView.Measure(i, key)
}
