package session

import "time"

// Severity classifies a log entry.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityThinking Severity = "thinking"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
)

// LogEntry is one immutable entry in a session's append-only log.
type LogEntry struct {
	Agent     string    `json:"agent"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentLog binds an agent name to a session so stage code can append entries
// without repeating itself.
type AgentLog struct {
	session *Session
	agent   string
}

// NewAgentLog returns an AgentLog writing to s under the given agent name.
func NewAgentLog(s *Session, agent string) *AgentLog {
	return &AgentLog{session: s, agent: agent}
}

func (l *AgentLog) Info(msg string)     { l.session.AppendLog(l.agent, msg, SeverityInfo) }
func (l *AgentLog) Thinking(msg string) { l.session.AppendLog(l.agent, msg, SeverityThinking) }
func (l *AgentLog) Success(msg string)  { l.session.AppendLog(l.agent, msg, SeveritySuccess) }
func (l *AgentLog) Warning(msg string)  { l.session.AppendLog(l.agent, msg, SeverityWarning) }
func (l *AgentLog) Error(msg string)    { l.session.AppendLog(l.agent, msg, SeverityError) }
