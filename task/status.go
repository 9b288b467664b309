package task

// Status is a process state as reported by the kernel.
type Status int

// Process states, mapped from the state code in /proc/<pid>/stat.
const (
	StatusUnknown Status = iota // 0 unrecognized state code
	StatusRunning               // 1 R
	StatusSleeping              // 2 S
	StatusDiskSleep             // 3 D
	StatusZombie                // 4 Z
	StatusStopped               // 5 T
	StatusTracingStop           // 6 t
	StatusIdle                  // 7 I
	StatusDead                  // 8 X
)

var statusString = []string{
	"unknown",
	"running",
	"sleeping",
	"disk-sleep",
	"zombie",
	"stopped",
	"tracing-stop",
	"idle",
	"dead",
}

func (s Status) String() string {
	i := int(s)
	if i >= 0 && i < len(statusString) {
		return statusString[i]
	}
	return statusString[0]
}

func statusFromState(state string) Status {
	switch state {
	case "R":
		return StatusRunning
	case "S":
		return StatusSleeping
	case "D":
		return StatusDiskSleep
	case "Z":
		return StatusZombie
	case "T":
		return StatusStopped
	case "t":
		return StatusTracingStop
	case "I":
		return StatusIdle
	case "X", "x":
		return StatusDead
	default:
		return StatusUnknown
	}
}
