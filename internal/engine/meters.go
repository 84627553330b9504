package engine

// AverageMeter tracks the latest value and the running average of a
// series of measurements.
type AverageMeter struct {
	Val   float32
	Avg   float32
	Sum   float32
	Count int
}

// NewAverageMeter creates a zeroed meter.
func NewAverageMeter() *AverageMeter { return &AverageMeter{} }

// Reset zeroes the meter.
func (m *AverageMeter) Reset() { *m = AverageMeter{} }

// Update records n observations of val.
func (m *AverageMeter) Update(val float32, n int) {
	m.Val = val
	m.Sum += val * float32(n)
	m.Count += n
	m.Avg = m.Sum / float32(m.Count)
}
