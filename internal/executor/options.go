package executor

// EchoMode controls how command_description events are rendered (spec.md
// §4.3, §4.5).
type EchoMode int

const (
	EchoDescription EchoMode = iota
	EchoCommandLine
	EchoSilent
)

func (m EchoMode) String() string {
	switch m {
	case EchoDescription:
		return "description"
	case EchoCommandLine:
		return "command-line"
	case EchoSilent:
		return "silent"
	default:
		return "unknown"
	}
}

// ParseEchoMode parses the --command-echo-mode flag value (spec.md §6).
func ParseEchoMode(s string) (EchoMode, bool) {
	switch s {
	case "description":
		return EchoDescription, true
	case "command-line":
		return EchoCommandLine, true
	case "silent":
		return EchoSilent, true
	default:
		return EchoDescription, false
	}
}

// Options is the build() configuration record (spec.md §4.3).
type Options struct {
	// MaxJobs is the maximum number of parallel transformers. Zero means
	// "use runtime.NumCPU()", resolved by Executor.Build rather than here
	// so that this struct stays a plain value type.
	MaxJobs int

	// JobLimits declares mutually exclusive pools: at any instant no
	// more than JobLimits[pool] transformers belonging to that pool may
	// be in flight. Pools not present here are unlimited.
	JobLimits map[string]int

	KeepGoing           bool
	DryRun              bool
	ForceTimestampCheck bool
	CheckOutputs        bool
	EchoMode            EchoMode
}

// DefaultOptions returns the documented defaults for every field spec.md
// §4.3 lists, with MaxJobs left at 0 (meaning "host core count",
// resolved at Build time).
func DefaultOptions() Options {
	return Options{
		MaxJobs:  0,
		EchoMode: EchoDescription,
	}
}
