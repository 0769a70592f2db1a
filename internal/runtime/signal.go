package runtime

// Kind classifies the side-channel request a blocking intrinsic emits
// instead of mutating runtime state directly. The executor itself never
// constructs these — machine.Hooks methods are called synchronously and
// are individually idempotent on retry, so the Scheduler's Hooks
// implementation commits each Signal's effect the moment it's raised
// rather than batching a list between slices; the Kind still records
// *why* a thread blocked, for tracing and for Thread.Status reporting.
type Kind uint8

const (
	SignalSpawn Kind = iota
	SignalClose
	SignalSleep
	SignalJoin
	SignalWait
	SignalWake
	SignalChannel
	SignalStdin
)

// Signal is a record of one blocking or coordination request a thread
// raised; Scheduler keeps a bounded trailing log for diagnostics.
type Signal struct {
	Kind   Kind
	Thread ExternThreadIdentifier
	Data   uint64
}

const signalLogCap = 64

func appendSignal(log []Signal, s Signal) []Signal {
	log = append(log, s)
	if len(log) > signalLogCap {
		log = log[len(log)-signalLogCap:]
	}
	return log
}
