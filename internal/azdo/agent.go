package azdo

type agentResponseEnvelope struct {
	Count  int     `json:"count"`
	Agents []Agent `json:"value"`
}

// Agent is a background service process registered against a pool
type Agent struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Enabled bool   `json:"enabled"`
	Status  string `json:"status"`
}

// Online reports whether the agent is connected to the pool
func (a Agent) Online() bool {
	return a.Status == "online"
}
