package optim

// Scheduler adjusts an optimizer's learning rate once per epoch. Call
// Step after each epoch completes.
type Scheduler interface {
	Step()
}

// StepLR decays the learning rate by gamma every stepSize epochs.
type StepLR struct {
	optimizer Optimizer
	baseLR    float32
	stepSize  int
	gamma     float32
	epoch     int
}

// NewStepLR creates a step decay schedule.
func NewStepLR(optimizer Optimizer, stepSize int, gamma float32) *StepLR {
	return &StepLR{
		optimizer: optimizer,
		baseLR:    optimizer.GetLR(),
		stepSize:  stepSize,
		gamma:     gamma,
	}
}

// Step advances one epoch and updates the learning rate.
func (s *StepLR) Step() {
	s.epoch++
	lr := s.baseLR
	for i := s.stepSize; i <= s.epoch; i += s.stepSize {
		lr *= s.gamma
	}
	s.optimizer.SetLR(lr)
}

// MultiStepLR decays the learning rate by gamma at each milestone
// epoch. Milestones must be increasing.
type MultiStepLR struct {
	optimizer  Optimizer
	baseLR     float32
	milestones []int
	gamma      float32
	epoch      int
}

// NewMultiStepLR creates a milestone decay schedule.
func NewMultiStepLR(optimizer Optimizer, milestones []int, gamma float32) *MultiStepLR {
	return &MultiStepLR{
		optimizer:  optimizer,
		baseLR:     optimizer.GetLR(),
		milestones: milestones,
		gamma:      gamma,
	}
}

// Step advances one epoch and updates the learning rate.
func (s *MultiStepLR) Step() {
	s.epoch++
	lr := s.baseLR
	for _, m := range s.milestones {
		if s.epoch >= m {
			lr *= s.gamma
		}
	}
	s.optimizer.SetLR(lr)
}
