package protocol

import "fmt"

// ErrorCode is the u16 error code carried in a JDWP reply header.
type ErrorCode uint16

// Error codes from the JDWP Error constant set.
const (
	ErrorNone                                ErrorCode = 0
	ErrorInvalidThread                       ErrorCode = 10
	ErrorInvalidThreadGroup                  ErrorCode = 11
	ErrorInvalidPriority                     ErrorCode = 12
	ErrorThreadNotSuspended                  ErrorCode = 13
	ErrorThreadSuspended                     ErrorCode = 14
	ErrorThreadNotAlive                      ErrorCode = 15
	ErrorInvalidObject                       ErrorCode = 20
	ErrorInvalidClass                        ErrorCode = 21
	ErrorClassNotPrepared                    ErrorCode = 22
	ErrorInvalidMethodID                     ErrorCode = 23
	ErrorInvalidLocation                     ErrorCode = 24
	ErrorInvalidFieldID                      ErrorCode = 25
	ErrorInvalidFrameID                      ErrorCode = 30
	ErrorNoMoreFrames                        ErrorCode = 31
	ErrorOpaqueFrame                         ErrorCode = 32
	ErrorNotCurrentFrame                     ErrorCode = 33
	ErrorTypeMismatch                        ErrorCode = 34
	ErrorInvalidSlot                         ErrorCode = 35
	ErrorDuplicate                           ErrorCode = 40
	ErrorNotFound                            ErrorCode = 41
	ErrorInvalidMonitor                      ErrorCode = 50
	ErrorNotMonitorOwner                     ErrorCode = 51
	ErrorInterrupt                           ErrorCode = 52
	ErrorInvalidClassFormat                  ErrorCode = 60
	ErrorCircularClassDefinition             ErrorCode = 61
	ErrorFailsVerification                   ErrorCode = 62
	ErrorAddMethodNotImplemented             ErrorCode = 63
	ErrorSchemaChangeNotImplemented          ErrorCode = 64
	ErrorInvalidTypestate                    ErrorCode = 65
	ErrorHierarchyChangeNotImplemented       ErrorCode = 66
	ErrorDeleteMethodNotImplemented          ErrorCode = 67
	ErrorUnsupportedVersion                  ErrorCode = 68
	ErrorNamesDontMatch                      ErrorCode = 69
	ErrorClassModifiersChangeNotImplemented  ErrorCode = 70
	ErrorMethodModifiersChangeNotImplemented ErrorCode = 71
	ErrorNotImplemented                      ErrorCode = 99
	ErrorNullPointer                         ErrorCode = 100
	ErrorAbsentInformation                   ErrorCode = 101
	ErrorInvalidEventType                    ErrorCode = 102
	ErrorIllegalArgument                     ErrorCode = 103
	ErrorOutOfMemory                         ErrorCode = 110
	ErrorAccessDenied                        ErrorCode = 111
	ErrorVMDead                              ErrorCode = 112
	ErrorInternal                            ErrorCode = 113
	ErrorUnattachedThread                    ErrorCode = 115
	ErrorInvalidTag                          ErrorCode = 500
	ErrorAlreadyInvoking                     ErrorCode = 502
	ErrorInvalidIndex                        ErrorCode = 503
	ErrorInvalidLength                       ErrorCode = 504
	ErrorInvalidString                       ErrorCode = 506
	ErrorInvalidClassLoader                  ErrorCode = 507
	ErrorInvalidArray                        ErrorCode = 508
	ErrorTransportLoad                       ErrorCode = 509
	ErrorTransportInit                       ErrorCode = 510
	ErrorNativeMethod                        ErrorCode = 511
	ErrorInvalidCount                        ErrorCode = 512
)

var errorText = map[ErrorCode]string{
	ErrorNone:                                "no error",
	ErrorInvalidThread:                       "thread is null, invalid or has exited",
	ErrorInvalidThreadGroup:                  "invalid thread group",
	ErrorInvalidPriority:                     "invalid priority",
	ErrorThreadNotSuspended:                  "thread not suspended by an event",
	ErrorThreadSuspended:                     "thread already suspended",
	ErrorThreadNotAlive:                      "thread not started or already dead",
	ErrorInvalidObject:                       "object unloaded or garbage collected",
	ErrorInvalidClass:                        "invalid class",
	ErrorClassNotPrepared:                    "class loaded but not yet prepared",
	ErrorInvalidMethodID:                     "invalid method",
	ErrorInvalidLocation:                     "invalid location",
	ErrorInvalidFieldID:                      "invalid field",
	ErrorInvalidFrameID:                      "invalid frame",
	ErrorNoMoreFrames:                        "no more frames on the call stack",
	ErrorOpaqueFrame:                         "frame information not available",
	ErrorNotCurrentFrame:                     "operation requires the current frame",
	ErrorTypeMismatch:                        "variable type does not match",
	ErrorInvalidSlot:                         "invalid slot",
	ErrorDuplicate:                           "item already set",
	ErrorNotFound:                            "element not found",
	ErrorInvalidMonitor:                      "invalid monitor",
	ErrorNotMonitorOwner:                     "thread does not own the monitor",
	ErrorInterrupt:                           "call interrupted before completion",
	ErrorInvalidClassFormat:                  "malformed class file",
	ErrorCircularClassDefinition:             "circular class definition",
	ErrorFailsVerification:                   "class file fails verification",
	ErrorAddMethodNotImplemented:             "adding methods not implemented",
	ErrorSchemaChangeNotImplemented:          "schema change not implemented",
	ErrorInvalidTypestate:                    "thread state modified and inconsistent",
	ErrorHierarchyChangeNotImplemented:       "hierarchy change not implemented",
	ErrorDeleteMethodNotImplemented:          "deleting methods not implemented",
	ErrorUnsupportedVersion:                  "unsupported class file version",
	ErrorNamesDontMatch:                      "class names do not match",
	ErrorClassModifiersChangeNotImplemented:  "class modifiers change not implemented",
	ErrorMethodModifiersChangeNotImplemented: "method modifiers change not implemented",
	ErrorNotImplemented:                      "not implemented in this VM",
	ErrorNullPointer:                         "invalid pointer",
	ErrorAbsentInformation:                   "information not available",
	ErrorInvalidEventType:                    "unrecognized event type",
	ErrorIllegalArgument:                     "illegal argument",
	ErrorOutOfMemory:                         "out of memory",
	ErrorAccessDenied:                        "debugging not enabled in this VM",
	ErrorVMDead:                              "VM is not running",
	ErrorInternal:                            "internal error",
	ErrorUnattachedThread:                    "calling thread not attached to the VM",
	ErrorInvalidTag:                          "invalid object type id or class tag",
	ErrorAlreadyInvoking:                     "previous invoke not complete",
	ErrorInvalidIndex:                        "invalid index",
	ErrorInvalidLength:                       "invalid length",
	ErrorInvalidString:                       "invalid string",
	ErrorInvalidClassLoader:                  "invalid class loader",
	ErrorInvalidArray:                        "invalid array",
	ErrorTransportLoad:                       "unable to load the transport",
	ErrorTransportInit:                       "unable to initialize the transport",
	ErrorNativeMethod:                        "native method",
	ErrorInvalidCount:                        "invalid count",
}

// ErrorText returns the description of code, or a generic label for codes
// outside the table.
func ErrorText(code ErrorCode) string {
	if text, ok := errorText[code]; ok {
		return text
	}
	return fmt.Sprintf("unknown error code %d", uint16(code))
}

// ReplyError is returned when the debuggee answers a command with a
// non-zero error code. The session stays usable.
type ReplyError struct {
	Command string
	Code    ErrorCode
}

func (e *ReplyError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("protocol: reply error %d: %s", uint16(e.Code), ErrorText(e.Code))
	}
	return fmt.Sprintf("protocol: %s: reply error %d: %s", e.Command, uint16(e.Code), ErrorText(e.Code))
}
