package vm

// Capability names in reply order.
const (
	CanWatchFieldModification        = "canWatchFieldModification"
	CanWatchFieldAccess              = "canWatchFieldAccess"
	CanGetBytecodes                  = "canGetBytecodes"
	CanGetSyntheticAttribute         = "canGetSyntheticAttribute"
	CanGetOwnedMonitorInfo           = "canGetOwnedMonitorInfo"
	CanGetCurrentContendedMonitor    = "canGetCurrentContendedMonitor"
	CanGetMonitorInfo                = "canGetMonitorInfo"
	CanRedefineClasses               = "canRedefineClasses"
	CanAddMethod                     = "canAddMethod"
	CanUnrestrictedlyRedefineClasses = "canUnrestrictedlyRedefineClasses"
	CanPopFrames                     = "canPopFrames"
	CanUseInstanceFilters            = "canUseInstanceFilters"
	CanGetSourceDebugExtension       = "canGetSourceDebugExtension"
	CanRequestVMDeathEvent           = "canRequestVMDeathEvent"
	CanSetDefaultStratum             = "canSetDefaultStratum"
	CanGetInstanceInfo               = "canGetInstanceInfo"
	CanRequestMonitorEvents          = "canRequestMonitorEvents"
	CanGetMonitorFrameInfo           = "canGetMonitorFrameInfo"
	CanUseSourceNameFilters          = "canUseSourceNameFilters"
	CanGetConstantPool               = "canGetConstantPool"
	CanForceEarlyReturn              = "canForceEarlyReturn"
)

// capabilityNames covers the Capabilities reply; CapabilitiesNew extends it.
var capabilityNames = []string{
	CanWatchFieldModification,
	CanWatchFieldAccess,
	CanGetBytecodes,
	CanGetSyntheticAttribute,
	CanGetOwnedMonitorInfo,
	CanGetCurrentContendedMonitor,
	CanGetMonitorInfo,
}

var capabilityNewNames = append(append([]string(nil), capabilityNames...),
	CanRedefineClasses,
	CanAddMethod,
	CanUnrestrictedlyRedefineClasses,
	CanPopFrames,
	CanUseInstanceFilters,
	CanGetSourceDebugExtension,
	CanRequestVMDeathEvent,
	CanSetDefaultStratum,
	CanGetInstanceInfo,
	CanRequestMonitorEvents,
	CanGetMonitorFrameInfo,
	CanUseSourceNameFilters,
	CanGetConstantPool,
	CanForceEarlyReturn,
)

// capabilitiesNewFlags is the flag count of a CapabilitiesNew reply,
// including the reserved tail.
const capabilitiesNewFlags = 32

type Capability struct {
	Name    string
	Enabled bool
}

// Capabilities keeps reply order. Reserved flags are named reserved22..32.
type Capabilities []Capability

func (cs Capabilities) Has(name string) bool {
	for _, c := range cs {
		if c.Name == name {
			return c.Enabled
		}
	}
	return false
}

// Enabled returns the names of the set flags.
func (cs Capabilities) Enabled() []string {
	var out []string
	for _, c := range cs {
		if c.Enabled {
			out = append(out, c.Name)
		}
	}
	return out
}
