package session

import (
	"sync"
	"time"

	"github.com/fintrustlabs/modeld/internal/analysis"
	"github.com/fintrustlabs/modeld/internal/marketdata"
	"github.com/fintrustlabs/modeld/internal/planning"
	"github.com/fintrustlabs/modeld/internal/qa"
)

// Session holds all state for one model-building conversation. All access
// goes through the mutex; stage executors never hold references into the
// internal slices.
type Session struct {
	mu sync.RWMutex

	id        string
	createdAt time.Time
	phase     Phase
	running   bool

	query        string
	userRequest  string
	companyData  *marketdata.CompanyData
	rec          *analysis.Recommendation
	deepAnalysis string
	assumptions  *planning.AssumptionSet
	missing      []string
	provided     map[string]float64
	artifactPath string
	qaReport     *qa.Report
	errMsg       string

	log []LogEntry
}

// newSession is only called by the store so IDs stay unique.
func newSession(id string) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now().UTC(),
		phase:     PhaseIdle,
		provided:  map[string]float64{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetPhase moves the session to the target phase, validating the edge.
func (s *Session) SetPhase(to Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := Transition(s.phase, to); err != nil {
		return err
	}
	s.phase = to
	return nil
}

// Fail moves the session to the error phase with a user-facing message.
// Failing an already-terminal session is a no-op.
func (s *Session) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.phase = PhaseError
	s.errMsg = msg
}

// TryBeginRun marks the session as having an in-flight pipeline run. It
// returns false when a run is already active so concurrent triggers cannot
// race the same session.
func (s *Session) TryBeginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// EndRun clears the in-flight marker.
func (s *Session) EndRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// SetQuery records the research query and the raw user request text.
func (s *Session) SetQuery(query, userRequest string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.userRequest = userRequest
}

// Query returns the research query.
func (s *Session) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// UserRequest returns the raw request text that started the session.
func (s *Session) UserRequest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userRequest
}

// SetCompanyData stores the research result.
func (s *Session) SetCompanyData(data *marketdata.CompanyData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companyData = data
}

// CompanyData returns the research result, nil before research completes.
func (s *Session) CompanyData() *marketdata.CompanyData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.companyData
}

// SetRecommendation stores the analysis outcome.
func (s *Session) SetRecommendation(rec analysis.Recommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = &rec
}

// Recommendation returns the analysis outcome, nil before analysis runs.
func (s *Session) Recommendation() *analysis.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

// SetDeepAnalysis stores the narrative company analysis.
func (s *Session) SetDeepAnalysis(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deepAnalysis = text
}

// DeepAnalysis returns the narrative company analysis.
func (s *Session) DeepAnalysis() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deepAnalysis
}

// SetAssumptions stores the planning output.
func (s *Session) SetAssumptions(set planning.AssumptionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assumptions = &set
}

// Assumptions returns the planning output, nil before planning runs.
func (s *Session) Assumptions() *planning.AssumptionSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assumptions
}

// SetMissingFields records which inputs the user still needs to supply.
func (s *Session) SetMissingFields(fields []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missing = append([]string(nil), fields...)
}

// MissingFields returns a copy of the outstanding input prompts.
func (s *Session) MissingFields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.missing...)
}

// ProvideField records a user-supplied value for a missing input and removes
// the matching prompt. Unknown fields are stored anyway; the builder decides
// what to do with them.
func (s *Session) ProvideField(field string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provided[field] = value
	remaining := s.missing[:0]
	for _, m := range s.missing {
		if !fieldMatches(m, field) {
			remaining = append(remaining, m)
		}
	}
	s.missing = remaining
}

// ProvidedFields returns a copy of the user-supplied values.
func (s *Session) ProvidedFields() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.provided))
	for k, v := range s.provided {
		out[k] = v
	}
	return out
}

// SetArtifact records the path of the rendered workbook.
func (s *Session) SetArtifact(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifactPath = path
}

// Artifact returns the workbook path, empty before the build completes.
func (s *Session) Artifact() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifactPath
}

// SetQAReport stores the audit outcome.
func (s *Session) SetQAReport(report *qa.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qaReport = report
}

// QAReport returns the audit outcome, nil before QA runs.
func (s *Session) QAReport() *qa.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qaReport
}

// Err returns the failure message for sessions in the error phase.
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// AppendLog adds an entry to the append-only session log.
func (s *Session) AppendLog(agent, msg string, sev Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, LogEntry{
		Agent:     agent,
		Message:   msg,
		Severity:  sev,
		Timestamp: time.Now().UTC(),
	})
}

// LogsAfter returns a copy of entries after cursor plus the new cursor.
// A cursor past the end returns an empty slice, never an error.
func (s *Session) LogsAfter(cursor int) ([]LogEntry, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(s.log) {
		return nil, len(s.log)
	}
	out := make([]LogEntry, len(s.log)-cursor)
	copy(out, s.log[cursor:])
	return out, len(s.log)
}

// LogLen returns the current log length so callers can resume streaming.
func (s *Session) LogLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}

// Snapshot is a point-in-time, immutable view of the session for the status
// endpoint.
type Snapshot struct {
	ID           string                   `json:"session_id"`
	Phase        Phase                    `json:"phase"`
	CreatedAt    time.Time                `json:"created_at"`
	Query        string                   `json:"query,omitempty"`
	CompanyData  *marketdata.CompanyData  `json:"company_data,omitempty"`
	Rec          *analysis.Recommendation `json:"recommendation,omitempty"`
	DeepAnalysis string                   `json:"deep_analysis,omitempty"`
	Assumptions  *planning.AssumptionSet  `json:"assumptions,omitempty"`
	Missing      []string                 `json:"missing_fields,omitempty"`
	Artifact     string                   `json:"artifact,omitempty"`
	QAReport     *qa.Report               `json:"qa_report,omitempty"`
	Error        string                   `json:"error,omitempty"`
	RecentLogs   []LogEntry               `json:"recent_logs"`
}

// Snapshot captures the session state with at most logWindow trailing log
// entries.
func (s *Session) Snapshot(logWindow int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if logWindow > 0 && len(s.log) > logWindow {
		start = len(s.log) - logWindow
	}
	recent := make([]LogEntry, len(s.log)-start)
	copy(recent, s.log[start:])

	return Snapshot{
		ID:           s.id,
		Phase:        s.phase,
		CreatedAt:    s.createdAt,
		Query:        s.query,
		CompanyData:  s.companyData,
		Rec:          s.rec,
		DeepAnalysis: s.deepAnalysis,
		Assumptions:  s.assumptions,
		Missing:      append([]string(nil), s.missing...),
		Artifact:     s.artifactPath,
		QAReport:     s.qaReport,
		Error:        s.errMsg,
		RecentLogs:   recent,
	}
}

// fieldMatches reports whether a missing-field prompt refers to field. The
// prompts are human-readable, so matching is a prefix check on the bare name.
func fieldMatches(prompt, field string) bool {
	if prompt == field {
		return true
	}
	return len(prompt) > len(field) &&
		prompt[:len(field)] == field &&
		(prompt[len(field)] == ' ' || prompt[len(field)] == '(')
}
