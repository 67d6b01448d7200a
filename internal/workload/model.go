package workload

import (
	"fmt"
	"math"

	"github.com/getsentry/callprof/pkg/hook"
)

type (
	Layer interface {
		Forward(Tensor) (Tensor, error)
	}

	Linear struct {
		Scale float64
		Bias  float64
	}

	ReLU struct{}

	Sigmoid struct{}

	// Sequential runs its layers in order. Sequentials can be nested, in which
	// case Forward recurses.
	Sequential struct {
		Layers []Layer
	}

	Model struct {
		Backbone *Sequential
	}
)

// NewModel returns a model whose backbone nests depth Sequential blocks.
func NewModel(depth int) *Model {
	defer hook.Enter()()
	head := &Sequential{Layers: []Layer{&Linear{Scale: 1.5, Bias: 0.1}, Sigmoid{}}}
	block := head
	for i := 1; i < depth; i++ {
		block = &Sequential{Layers: []Layer{&Linear{Scale: 0.9, Bias: 0.05}, ReLU{}, block}}
	}
	return &Model{Backbone: block}
}

func (m *Model) Forward(t Tensor) (Tensor, error) {
	defer hook.Enter()()
	out, err := m.Backbone.Forward(t)
	if err != nil {
		return nil, fmt.Errorf("workload: forward: %w", err)
	}
	return out, nil
}

func (s *Sequential) Forward(t Tensor) (Tensor, error) {
	defer hook.Enter()()
	var err error
	for _, l := range s.Layers {
		t, err = l.Forward(t)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (l *Linear) Forward(t Tensor) (Tensor, error) {
	defer hook.Enter()()
	out := make(Tensor, len(t))
	for i, v := range t {
		out[i] = v*l.Scale + l.Bias
	}
	return out, nil
}

func (ReLU) Forward(t Tensor) (Tensor, error) {
	defer hook.Enter()()
	out := make(Tensor, len(t))
	for i, v := range t {
		if v > 0 {
			out[i] = v
		}
	}
	return out, nil
}

func (Sigmoid) Forward(t Tensor) (Tensor, error) {
	defer hook.Enter()()
	out := make(Tensor, len(t))
	for i, v := range t {
		var e float64
		if err := hook.Native(math.Exp, func() error {
			e = math.Exp(-v)
			return nil
		}); err != nil {
			return nil, err
		}
		out[i] = 1 / (1 + e)
	}
	return out, nil
}
