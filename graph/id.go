package graph

import "strings"

// nsSep separates context labels within a Namespace's internal string
// representation. It is not a character a context label is expected to
// contain.
const nsSep = "\x1f"

// Namespace is an ordered sequence of context labels, represented as a
// single comparable string so NodeId stays usable as a map key. Use
// RootNamespace, NewNamespace, or Push rather than constructing one
// directly.
type Namespace string

// RootNamespace is the outermost, unframed namespace.
const RootNamespace Namespace = ""

// NewNamespace builds a namespace from an ordered list of context labels.
func NewNamespace(labels ...string) Namespace {
	return Namespace(strings.Join(labels, nsSep))
}

// Push returns the namespace formed by entering one more context frame
// named label.
func (ns Namespace) Push(label string) Namespace {
	if ns == RootNamespace {
		return Namespace(label)
	}
	return ns + nsSep + Namespace(label)
}

// Labels returns the namespace's context labels in order.
func (ns Namespace) Labels() []string {
	if ns == RootNamespace {
		return nil
	}
	return strings.Split(string(ns), nsSep)
}

func (ns Namespace) String() string {
	return strings.Join(ns.Labels(), "/")
}

// NodeId is a node's identity: a name plus the namespace it was declared
// in. Two NodeIds with the same name and namespace refer to the same node.
type NodeId struct {
	Name      string
	Namespace Namespace
}

// NewNodeId builds a NodeId in the given namespace.
func NewNodeId(name string, ns Namespace) NodeId {
	return NodeId{Name: name, Namespace: ns}
}

func (id NodeId) String() string {
	if id.Namespace == RootNamespace {
		return id.Name
	}
	return id.Namespace.String() + "/" + id.Name
}
