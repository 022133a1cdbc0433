package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeCall    = "CALL"
	TypeResult  = "RESULT"
)

// Call methods.
const (
	MethodObserveTarget   = "observe_target"
	MethodObserveHost     = "observe_host"
	MethodDispatch        = "dispatch"
	MethodIsFinished      = "is_finished"
	MethodPredictDuration = "predict_duration"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
