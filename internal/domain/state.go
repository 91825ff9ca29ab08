package domain

// State is the lifecycle state of a document. Transitions are monotonic
// along uploaded -> ocr_pending -> {ocr_complete, ocr_failed} -> verified,
// with ocr_failed -> ocr_pending allowed for retries.
type State string

const (
	StateUploaded    State = "uploaded"
	StateOcrPending  State = "ocr_pending"
	StateOcrComplete State = "ocr_complete"
	StateOcrFailed   State = "ocr_failed"
	StateVerified    State = "verified"
)

// TriggerableStates are the states from which an extraction may start.
// A document in any other state makes a trigger a no-op.
func TriggerableStates() []State {
	return []State{StateUploaded, StateOcrFailed}
}
