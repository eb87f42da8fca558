package registry

import (
	"github.com/aretw0/hsmgrid/pkg/domain"
	"github.com/aretw0/hsmgrid/pkg/ports"
)

// RegisterPortLink indexes link under its destination machine. Duplicates
// are kept and all of them take part in resolution.
func (r *Registry) RegisterPortLink(link domain.PortLink) {
	r.links[link.ToMachine] = append(r.links[link.ToMachine], link)
	r.logger.Debug("port link registered", "link", link.String())
}

// RegisterDeclaredLinks registers every link listed in m's definition and
// returns how many were added.
func (r *Registry) RegisterDeclaredLinks(m ports.Machine) int {
	def := m.Definition()
	if def == nil {
		return 0
	}
	for _, l := range def.Links {
		r.RegisterPortLink(l.PortLink())
	}
	return len(def.Links)
}

// Links returns the links registered for destMachine in insertion order.
func (r *Registry) Links(destMachine string) []domain.PortLink {
	return append([]domain.PortLink(nil), r.links[destMachine]...)
}

// ResolveSourcePorts returns the ports that feed destMachine.destPort.
//
// Explicit links win. Only when no link at all is registered for
// destMachine does the naming convention apply: destPort is taken as a
// machine name and its port named destMachine is the source. Resolving
// (FuelMixture, Air) therefore yields Air.FuelMixture. Machines whose names
// collide with port names resolve through this convention too, which can be
// surprising.
//
// An unresolved route is an empty result, never an error.
func (r *Registry) ResolveSourcePorts(destMachine, destPort string) []*domain.Port {
	links, ok := r.links[destMachine]
	if !ok || len(links) == 0 {
		return r.resolveByConvention(destMachine, destPort)
	}

	var out []*domain.Port
	for _, l := range links {
		if l.ToPort != destPort {
			continue
		}
		src, ok := r.instances[l.FromMachine]
		if !ok {
			continue
		}
		if p := src.Port(l.FromPort); p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) resolveByConvention(destMachine, destPort string) []*domain.Port {
	src, ok := r.instances[destPort]
	if !ok {
		return nil
	}
	if p := src.Port(destMachine); p != nil {
		return []*domain.Port{p}
	}
	return nil
}
