package domain

// AgentProfile is an agent's identity: who it is and how it behaves.
// Immutable once resolved; loaded once per process lifetime.
type AgentProfile struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
}

// Sibling describes a peer agent the orchestrator can delegate to.
type Sibling struct {
	Name        string `json:"name"        yaml:"name"`
	ToolName    string `json:"tool_name"   yaml:"tool_name"`
	Description string `json:"description" yaml:"description"`
	Endpoint    string `json:"endpoint"    yaml:"endpoint"`
}
