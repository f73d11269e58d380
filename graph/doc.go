// Package graph holds the job graph's data model: node identifiers,
// namespaces, the tagged-union Node type, and the dependency edges between
// nodes. Nothing here executes a node — graph/build lowers a job
// configuration into this model, graph/resolve binds each node to an
// executable function, and engine drives the resulting graph to
// completion.
package graph
