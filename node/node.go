// Package node provides the process-local context that components are built from: a name, a
// logger, a tree of parameters and a bus of typed topics.
package node

import (
	"sync"

	"go.viam.com/motionkit/logging"
	"go.viam.com/motionkit/utils"
)

// Node holds parameters and topics shared by the components of one process.
type Node struct {
	name   string
	logger logging.Logger

	paramMu   sync.RWMutex
	params    map[string]any
	listeners []func()

	topicMu sync.RWMutex
	topics  map[string]*topic

	workers *utils.StoppableWorkers
}

// New returns a node with no parameters. Everything the node logs carries its name.
func New(name string, logger logging.Logger) *Node {
	return &Node{
		name:    name,
		logger:  logger.With("node", name),
		params:  map[string]any{},
		topics:  map[string]*topic{},
		workers: utils.NewStoppableWorkers(),
	}
}

// Name returns the name of the node.
func (n *Node) Name() string {
	return n.name
}

// Logger returns the node's logger.
func (n *Node) Logger() logging.Logger {
	return n.logger
}

// Close stops any parameter file watchers.
func (n *Node) Close() {
	n.workers.Stop()
}
