package osnet

import (
	"fmt"
	"strings"

	"github.com/reid-ml/osnet/internal/nn"
	"github.com/reid-ml/osnet/internal/tensor"
)

// registry is an ordered collection of named parameters. Every layer
// registers its parameters under a dotted path at construction time, so
// checkpointing and selective freezing work from explicit names rather
// than runtime introspection.
type registry[B tensor.Backend] struct {
	names  []string
	params map[string]*nn.Parameter[B]
}

func newRegistry[B tensor.Backend]() *registry[B] {
	return &registry[B]{params: make(map[string]*nn.Parameter[B])}
}

func (r *registry[B]) add(name string, p *nn.Parameter[B]) {
	if _, exists := r.params[name]; exists {
		panic(fmt.Sprintf("registry: duplicate parameter name %q", name))
	}
	r.names = append(r.names, name)
	r.params[name] = p
}

// NamedParameter pairs a dotted parameter path with the parameter.
type NamedParameter[B tensor.Backend] struct {
	Name      string
	Parameter *nn.Parameter[B]
}

func (r *registry[B]) named() []NamedParameter[B] {
	out := make([]NamedParameter[B], 0, len(r.names))
	for _, name := range r.names {
		out = append(out, NamedParameter[B]{Name: name, Parameter: r.params[name]})
	}
	return out
}

func (r *registry[B]) all() []*nn.Parameter[B] {
	out := make([]*nn.Parameter[B], 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.params[name])
	}
	return out
}

// setTrainableByPrefix unfreezes parameters whose path starts with one
// of the given top-level layer names and freezes everything else.
func (r *registry[B]) setTrainableByPrefix(layers []string) {
	for _, name := range r.names {
		open := false
		for _, layer := range layers {
			if name == layer || strings.HasPrefix(name, layer+".") {
				open = true
				break
			}
		}
		r.params[name].SetTrainable(open)
	}
}

func (r *registry[B]) setAllTrainable(trainable bool) {
	for _, name := range r.names {
		r.params[name].SetTrainable(trainable)
	}
}
