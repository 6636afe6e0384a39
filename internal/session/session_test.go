package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrustlabs/modeld/internal/marketdata"
)

func TestLogsAfterCursor(t *testing.T) {
	s := newSession("test")
	for i := 0; i < 5; i++ {
		s.AppendLog("Research Agent", fmt.Sprintf("entry %d", i), SeverityInfo)
	}

	logs, cursor := s.LogsAfter(0)
	require.Len(t, logs, 5)
	assert.Equal(t, 5, cursor)

	logs, cursor = s.LogsAfter(3)
	require.Len(t, logs, 2)
	assert.Equal(t, "entry 3", logs[0].Message)
	assert.Equal(t, 5, cursor)

	// Past-the-end and negative cursors never error.
	logs, cursor = s.LogsAfter(99)
	assert.Empty(t, logs)
	assert.Equal(t, 5, cursor)

	logs, _ = s.LogsAfter(-1)
	assert.Len(t, logs, 5)
}

func TestLogsAfterReturnsCopy(t *testing.T) {
	s := newSession("test")
	s.AppendLog("Research Agent", "original", SeverityInfo)

	logs, _ := s.LogsAfter(0)
	logs[0].Message = "mutated"

	again, _ := s.LogsAfter(0)
	assert.Equal(t, "original", again[0].Message)
}

func TestSnapshotLogWindow(t *testing.T) {
	s := newSession("test")
	for i := 0; i < 10; i++ {
		s.AppendLog("Build Agent", fmt.Sprintf("entry %d", i), SeverityInfo)
	}

	snap := s.Snapshot(3)
	require.Len(t, snap.RecentLogs, 3)
	assert.Equal(t, "entry 7", snap.RecentLogs[0].Message)

	all := s.Snapshot(0)
	assert.Len(t, all.RecentLogs, 10)
}

func TestProvideFieldClearsMatchingPrompt(t *testing.T) {
	s := newSession("test")
	s.SetMissingFields([]string{
		"total debt (required for an LBO capital structure)",
		"shares outstanding (not available from market data)",
	})

	s.ProvideField("total debt", 1200)

	missing := s.MissingFields()
	require.Len(t, missing, 1)
	assert.Contains(t, missing[0], "shares outstanding")
	assert.Equal(t, 1200.0, s.ProvidedFields()["total debt"])
}

func TestTryBeginRunGuardsConcurrentTriggers(t *testing.T) {
	s := newSession("test")
	require.True(t, s.TryBeginRun())
	assert.False(t, s.TryBeginRun())
	s.EndRun()
	assert.True(t, s.TryBeginRun())
}

func TestStore(t *testing.T) {
	st := NewStore()
	a := st.New()
	b := st.New()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, st.Len())

	got, err := st.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = st.Get("nope")
	assert.Error(t, err)

	assert.Same(t, b, st.GetOrCreate(b.ID()))
	fresh := st.GetOrCreate("")
	assert.Equal(t, 3, st.Len())
	assert.Equal(t, PhaseIdle, fresh.Phase())
}

func TestAgentLogSeverities(t *testing.T) {
	s := newSession("test")
	log := NewAgentLog(s, "QA Agent")
	log.Info("a")
	log.Thinking("b")
	log.Success("c")
	log.Warning("d")
	log.Error("e")

	entries, _ := s.LogsAfter(0)
	require.Len(t, entries, 5)
	assert.Equal(t, SeverityThinking, entries[1].Severity)
	assert.Equal(t, "QA Agent", entries[0].Agent)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestSnapshotCarriesTypedState(t *testing.T) {
	s := newSession("test")
	s.SetCompanyData(&marketdata.CompanyData{Found: true, CompanyName: "Acme", Ticker: "ACME"})
	s.SetArtifact("/tmp/acme.xlsx")

	snap := s.Snapshot(5)
	require.NotNil(t, snap.CompanyData)
	assert.Equal(t, "ACME", snap.CompanyData.Ticker)
	assert.Equal(t, "/tmp/acme.xlsx", snap.Artifact)
	assert.Equal(t, "test", snap.ID)
}
