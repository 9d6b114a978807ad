// Package logging wires up the master's per-component loggers. Every
// registry, the notifier, and the facade each log through their own named
// module so an operator can turn up verbosity for, say, the notifier
// alone without drowning in registry chatter.
package logging

import (
	"os"

	modular "github.com/edwinhayes/logrus-modular"
	"github.com/sirupsen/logrus"
)

// Names of the modules the master logs through. Passed to Module to get
// a logger scoped to that component.
const (
	ModuleTopic     = "topic"
	ModuleService   = "service"
	ModuleParam     = "param"
	ModuleNotifier  = "notifier"
	ModuleFacade    = "facade"
	ModuleTransport = "transport"
)

var root modular.RootLogger

func init() {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	root = modular.NewRootLogger(base)
}

// Module returns the logger scoped to the named component. Each module
// logger can have its level adjusted independently via SetLevel.
func Module(name string) modular.ModuleLogger {
	return root.GetOrCreateChild(name, root.GetLevel())
}

// SetLevel adjusts the root logger's level; every module inherits it
// unless it has been overridden individually with SetModuleLevel.
func SetLevel(level logrus.Level) {
	root.SetLevel(level)
}

// SetModuleLevel overrides the level of a single module, leaving the
// root and every other module untouched.
func SetModuleLevel(name string, level logrus.Level) {
	Module(name).SetLevel(level)
}
