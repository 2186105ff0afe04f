// Package commands maps stable command names to their JDWP wire identity.
package commands

import (
	"fmt"
	"sort"

	"github.com/danmuck/jdwpctl/internal/protocol"
)

// Command set IDs from the JDWP specification.
const (
	SetVirtualMachine uint8 = 1
)

// ID is the two-byte wire identity of a command.
type ID struct {
	Set     uint8
	Command uint8
}

func (id ID) String() string {
	return fmt.Sprintf("%d/%d", id.Set, id.Command)
}

// Command names. Values are the keys of the table below.
const (
	Version               = "Version"
	ClassesBySignature    = "ClassesBySignature"
	AllClasses            = "AllClasses"
	AllThreads            = "AllThreads"
	TopLevelThreadGroups  = "TopLevelThreadGroups"
	Dispose               = "Dispose"
	IDSizes               = "IDSizes"
	Suspend               = "Suspend"
	Resume                = "Resume"
	Exit                  = "Exit"
	CreateString          = "CreateString"
	Capabilities          = "Capabilities"
	ClassPaths            = "ClassPaths"
	DisposeObjects        = "DisposeObjects"
	HoldEvents            = "HoldEvents"
	ReleaseEvents         = "ReleaseEvents"
	CapabilitiesNew       = "CapabilitiesNew"
	RedefineClasses       = "RedefineClasses"
	SetDefaultStratum     = "SetDefaultStratum"
	AllClassesWithGeneric = "AllClassesWithGeneric"
	InstanceCounts        = "InstanceCounts"
)

var table = map[string]ID{
	Version:               {SetVirtualMachine, 1},
	ClassesBySignature:    {SetVirtualMachine, 2},
	AllClasses:            {SetVirtualMachine, 3},
	AllThreads:            {SetVirtualMachine, 4},
	TopLevelThreadGroups:  {SetVirtualMachine, 5},
	Dispose:               {SetVirtualMachine, 6},
	IDSizes:               {SetVirtualMachine, 7},
	Suspend:               {SetVirtualMachine, 8},
	Resume:                {SetVirtualMachine, 9},
	Exit:                  {SetVirtualMachine, 10},
	CreateString:          {SetVirtualMachine, 11},
	Capabilities:          {SetVirtualMachine, 12},
	ClassPaths:            {SetVirtualMachine, 13},
	DisposeObjects:        {SetVirtualMachine, 14},
	HoldEvents:            {SetVirtualMachine, 15},
	ReleaseEvents:         {SetVirtualMachine, 16},
	CapabilitiesNew:       {SetVirtualMachine, 17},
	RedefineClasses:       {SetVirtualMachine, 18},
	SetDefaultStratum:     {SetVirtualMachine, 19},
	AllClassesWithGeneric: {SetVirtualMachine, 20},
	InstanceCounts:        {SetVirtualMachine, 21},
}

var byID = func() map[ID]string {
	out := make(map[ID]string, len(table))
	for name, id := range table {
		out[id] = name
	}
	return out
}()

// Lookup resolves name or fails with protocol.ErrUnknownCommand.
func Lookup(name string) (ID, error) {
	id, ok := table[name]
	if !ok {
		return ID{}, fmt.Errorf("%w: %q", protocol.ErrUnknownCommand, name)
	}
	return id, nil
}

// NameOf is the reverse of Lookup.
func NameOf(id ID) (string, bool) {
	name, ok := byID[id]
	return name, ok
}

// Names returns every registered name in wire order.
func Names() []string {
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := table[out[i]], table[out[j]]
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		return a.Command < b.Command
	})
	return out
}
