package mapping

import (
	"io"
	"testing"
	"time"

	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) (*Engine, *store.MappingStore) {
	t.Helper()
	log := logging.New(io.Discard, "error", "json")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.NewMappingStore(db)
	return NewEngine(st, log), st
}

func TestEngine_ResolveFanOut(t *testing.T) {
	e, st := testEngine(t)

	require.NoError(t, st.Upsert(domain.ChannelMapping{
		SourceChannel: "100/200", Platform: domain.PlatformDiscord,
		BotID: "bot1", DestChannel: "chan-a", Enabled: true,
	}))
	require.NoError(t, st.Upsert(domain.ChannelMapping{
		SourceChannel: "100/200", Platform: domain.PlatformTelegram,
		BotID: "bot2", DestChannel: "-1001", Enabled: true,
	}))
	require.NoError(t, st.Upsert(domain.ChannelMapping{
		SourceChannel: "100/200", Platform: domain.PlatformSlack,
		BotID: "bot3", DestChannel: "C123", Enabled: false,
	}))
	require.NoError(t, e.Refresh())

	got := e.Resolve("100/200")
	require.Len(t, got, 2, "disabled mapping excluded")
	assert.Nil(t, e.Resolve("999"), "unmapped channel resolves to nothing")
}

func TestEngine_RefreshPicksUpChanges(t *testing.T) {
	e, st := testEngine(t)
	require.NoError(t, e.Refresh())
	assert.Empty(t, e.Resolve("42"))

	require.NoError(t, st.Upsert(domain.ChannelMapping{
		SourceChannel: "42", Platform: domain.PlatformDiscord,
		BotID: "b", DestChannel: "c", Enabled: true,
	}))
	assert.Empty(t, e.Resolve("42"), "index is stale until Refresh")

	require.NoError(t, e.Refresh())
	assert.Len(t, e.Resolve("42"), 1)
}

func TestEngine_ApplySuggestionCreatesEnabledMapping(t *testing.T) {
	e, st := testEngine(t)

	m := domain.ChannelMapping{
		SourceChannel: "7", Platform: domain.PlatformDiscord,
		BotID: "b1", DestChannel: "general",
	}
	require.NoError(t, e.ApplySuggestion(m))

	got := e.Resolve("7")
	require.Len(t, got, 1)
	assert.True(t, got[0].Enabled)

	// Acceptance is learned
	pairs, err := st.LearnedPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, m.DestKey(), pairs[0].DestKey)
	assert.Equal(t, 1.0, pairs[0].UseCount)
}

func TestEngine_FeedbackAdjustsLearnedWeight(t *testing.T) {
	e, st := testEngine(t)
	at := time.Now()

	require.NoError(t, e.RecordUse("7", "discord:b1:general", at))
	require.NoError(t, e.RecordUse("7", "discord:b1:general", at))
	require.NoError(t, e.RecordFeedback(domain.MappingFeedback{
		SourceChannel: "7", DestKey: "discord:b1:general", Accepted: false, Timestamp: at,
	}))

	pairs, err := st.LearnedPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 1.0, pairs[0].UseCount, "two uses minus one reject")

	// Rejects never drive the count negative
	for i := 0; i < 5; i++ {
		require.NoError(t, e.RecordFeedback(domain.MappingFeedback{
			SourceChannel: "7", DestKey: "discord:b1:general", Accepted: false, Timestamp: at,
		}))
	}
	pairs, err = st.LearnedPairs()
	require.NoError(t, err)
	assert.Equal(t, 0.0, pairs[0].UseCount)
}

func TestEngine_SuggestRanksAndFilters(t *testing.T) {
	e, _ := testEngine(t)

	got, err := e.Suggest("100", "announcements", []Candidate{
		{DestKey: "discord:b:1", Name: "announcements"},
		{DestKey: "discord:b:2", Name: "announcement"},
		{DestKey: "discord:b:3", Name: "totally-unrelated-xyz"},
	}, 0.2)
	require.NoError(t, err)
	require.Len(t, got, 2, "weak candidate below floor dropped")
	assert.Equal(t, "discord:b:1", got[0].Candidate)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Greater(t, got[0].Confidence, got[1].Confidence)
}

func TestEngine_SuggestUsesLearnedHistory(t *testing.T) {
	e, _ := testEngine(t)
	now := time.Now()

	base, err := e.Suggest("100", "讨论区", []Candidate{{DestKey: "discord:b:talk", Name: "talk-zone"}}, 0)
	require.NoError(t, err)
	require.Len(t, base, 1)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.RecordUse("100", "discord:b:talk", now))
	}
	boosted, err := e.Suggest("100", "讨论区", []Candidate{{DestKey: "discord:b:talk", Name: "talk-zone"}}, 0)
	require.NoError(t, err)
	require.Len(t, boosted, 1)
	assert.Greater(t, boosted[0].Confidence, base[0].Confidence, "recent use raises confidence")
}

func TestEngine_PruneFeedbackDropsAgedHistory(t *testing.T) {
	e, st := testEngine(t)
	stale := time.Now().Add(-200 * 24 * time.Hour)

	require.NoError(t, st.AppendFeedback(domain.MappingFeedback{
		SourceChannel: "100", DestKey: "discord:b:old", Accepted: true, Timestamp: stale,
	}))
	require.NoError(t, st.AdjustLearned("100", "discord:b:old", 3, stale))

	candidates := []Candidate{
		{DestKey: "discord:b:old", Name: "unrelated-name"},
		{DestKey: "discord:b:new", Name: "unrelated-name"},
	}
	before, err := e.Suggest("100", "alpha", candidates, 0)
	require.NoError(t, err)
	require.Len(t, before, 2)
	require.Equal(t, "discord:b:old", before[0].Candidate, "stale history still nudges ranking before the prune")
	assert.Greater(t, before[0].Confidence, before[1].Confidence)

	require.NoError(t, e.PruneFeedback(180*24*time.Hour))

	pairs, err := st.LearnedPairs()
	require.NoError(t, err)
	assert.Empty(t, pairs, "learned pair idle past the age limit is removed")

	after, err := e.Suggest("100", "alpha", candidates, 0)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.InDelta(t, after[0].Confidence, after[1].Confidence, 1e-9,
		"pruned history no longer influences confidence")
}
