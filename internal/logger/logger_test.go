package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("loud", "json")
	require.Error(t, err)

	_, err = New("info", "xml")
	require.Error(t, err)

	log, err := New("debug", "console")
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestObjFieldsAreNested(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core))

	log.InfoObj("keyword scraped", "scrape", map[string]any{"keyword": "suicide", "found": 3})
	log.Debugf("chromedp %s", "event")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "keyword scraped", entries[0].Message)
	fields := entries[0].ContextMap()
	require.Contains(t, fields, "scrape")
	assert.Equal(t, "chromedp event", entries[1].Message)
}

func TestEnsure(t *testing.T) {
	assert.IsType(t, NopLogger{}, Ensure(nil))
	require.NoError(t, Ensure(nil).Sync())
}
