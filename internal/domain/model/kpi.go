package model

// Record is the normalised (therapist, month) unit produced by the KPI
// loader. A nil value means the cell was blank.
type Record struct {
	Name   string
	Month  Month
	Values map[string]*float64
}

// Value returns the KPI value and whether it was present.
func (r Record) Value(kpi string) (float64, bool) {
	v, ok := r.Values[kpi]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Float returns a pointer to v for building records.
func Float(v float64) *float64 { return &v }
