package domain

import "fmt"

// Port is a named communication endpoint owned by a single machine instance.
// It is an addressing handle, not a buffer.
type Port struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

// NewPort creates a port named name owned by the machine owner.
func NewPort(owner, name string) *Port {
	return &Port{Name: name, Owner: owner}
}

// QualifiedName returns "Owner.Name".
func (p *Port) QualifiedName() string {
	return p.Owner + "." + p.Name
}

func (p *Port) String() string {
	return p.QualifiedName()
}

// PortLink wires (FromMachine, FromPort) to (ToMachine, ToPort).
// Links are values and never change once created.
type PortLink struct {
	FromMachine string `json:"from_machine"`
	FromPort    string `json:"from_port"`
	ToMachine   string `json:"to_machine"`
	ToPort      string `json:"to_port"`
}

// NewPortLink creates a link from fromMachine.fromPort to toMachine.toPort.
func NewPortLink(fromMachine, fromPort, toMachine, toPort string) PortLink {
	return PortLink{
		FromMachine: fromMachine,
		FromPort:    fromPort,
		ToMachine:   toMachine,
		ToPort:      toPort,
	}
}

func (l PortLink) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", l.FromMachine, l.FromPort, l.ToMachine, l.ToPort)
}
