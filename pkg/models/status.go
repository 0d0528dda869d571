package models

// TaskState is the lifecycle state of a crawl task
type TaskState string

const (
	TaskStateUnset      TaskState = ""           // Zero value = unset/unknown
	TaskStatePending    TaskState = "pending"    // Spawned, not yet taken by a worker
	TaskStateDispatched TaskState = "dispatched" // Popped by a worker
	TaskStateFetching   TaskState = "fetching"   // Passed the visited gate, extractor running
	TaskStateCompleted  TaskState = "completed"  // Extractor returned and children were spawned
	TaskStateDropped    TaskState = "dropped"    // Never fetched (depth, duplicate, limit, store error)
)

// String implements fmt.Stringer for logging
func (s TaskState) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsTerminal reports whether no further transition can happen from s
func (s TaskState) IsTerminal() bool {
	return s == TaskStateCompleted || s == TaskStateDropped
}

// CanTransition reports whether moving from s to next is a legal lifecycle step
func (s TaskState) CanTransition(next TaskState) bool {
	switch s {
	case TaskStatePending:
		return next == TaskStateDispatched || next == TaskStateDropped
	case TaskStateDispatched:
		return next == TaskStateFetching || next == TaskStateDropped
	case TaskStateFetching:
		return next == TaskStateCompleted || next == TaskStateDropped
	}
	return false
}

// DropReason records why a task ended in TaskStateDropped
type DropReason string

const (
	DropReasonDepth        DropReason = "depth_exceeded"
	DropReasonDuplicate    DropReason = "duplicate"
	DropReasonBackpressure DropReason = "pending_limit"
	DropReasonStoreError   DropReason = "store_error"
)

// String implements fmt.Stringer for logging
func (r DropReason) String() string {
	if r == "" {
		return "none"
	}
	return string(r)
}
