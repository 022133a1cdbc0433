package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	GameParams      GameParams `json:"game_params"`
}

type GameParams struct {
	HackRAMGB   float64 `json:"hack_ram_gb"`
	GrowRAMGB   float64 `json:"grow_ram_gb"`
	WeakenRAMGB float64 `json:"weaken_ram_gb"`
}

// CALL (client -> server): one API invocation, answered by a RESULT
// carrying the same id.
type CallMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id"`
	Method          string          `json:"method"`
	Params          json.RawMessage `json:"params,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorInfo      `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Method params and results.

type ObserveTargetParams struct {
	Host string `json:"host"`
}

type TargetObs struct {
	Host        string  `json:"host"`
	Value       float64 `json:"value"`
	MaxValue    float64 `json:"max_value"`
	Security    float64 `json:"security"`
	MinSecurity float64 `json:"min_security"`
	GrowthBase  float64 `json:"growth_base"`
	HackYield   float64 `json:"hack_yield"`
}

type ObserveHostParams struct {
	Host string `json:"host"`
}

type HostObs struct {
	Host      string  `json:"host"`
	FreeRAMGB float64 `json:"free_ram_gb"`
	MaxRAMGB  float64 `json:"max_ram_gb"`
}

type DispatchParams struct {
	Kind    string `json:"kind"` // "HACK", "GROW", "WEAKEN"
	Host    string `json:"host"`
	Target  string `json:"target"`
	Threads int    `json:"threads"`
	DelayMs int64  `json:"delay_ms"`
}

type DispatchResult struct {
	Host string `json:"host"`
	PID  int64  `json:"pid"`
}

type IsFinishedParams struct {
	Host string `json:"host"`
	PID  int64  `json:"pid"`
}

type IsFinishedResult struct {
	Finished bool `json:"finished"`
}

type PredictDurationParams struct {
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

type PredictDurationResult struct {
	DurationMs int64 `json:"duration_ms"`
}
