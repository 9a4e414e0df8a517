package errors

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = NewStd("bird not found")

func TestBuild_FastPathDefaults(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuild_KeepsExplicitFields(t *testing.T) {
	t.Parallel()

	ee := Newf("genus %q too long", "Accipitridaeeeeee").
		Component("datastore").
		Category(CategoryValidation).
		Priority(PriorityHigh).
		Context("field", "genus").
		Build()

	assert.Equal(t, "datastore", ee.GetComponent())
	assert.Equal(t, CategoryValidation, ee.Category)
	assert.Equal(t, PriorityHigh, ee.Priority)
	assert.Equal(t, map[string]any{"field": "genus"}, ee.GetContext())
	assert.True(t, IsValidation(ee))
	assert.False(t, IsNotFound(ee))
}

func TestBuild_InvalidPriorityFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := Newf("x").Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestBuild_InheritsCategoryFromWrappedError(t *testing.T) {
	t.Parallel()

	inner := New(errSentinel).Category(CategoryNotFound).Build()
	outer := New(fmt.Errorf("lookup failed: %w", inner)).Build()

	assert.Equal(t, CategoryNotFound, outer.Category)
	assert.True(t, Is(outer, errSentinel), "sentinel must stay reachable through the chain")
}

func TestEnhancedError_IsMatchesCategory(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryConflict).Build()
	b := Newf("b").Category(CategoryConflict).Build()
	c := Newf("c").Category(CategoryDatabase).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CategoryGeneric, CategoryOf(fmt.Errorf("plain")))
	assert.Equal(t, CategoryDatabase, CategoryOf(Newf("db").Category(CategoryDatabase).Build()))
}

func TestGetContext_ReturnsCopy(t *testing.T) {
	t.Parallel()

	ee := Newf("x").Context("id", 7).Build()
	ctx := ee.GetContext()
	ctx["id"] = 8

	assert.Equal(t, 7, ee.GetContext()["id"])
}

func TestScrubMessageForPrivacy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{"url query", "GET https://api.ebird.org/v2/ref?key=secret123 failed", "https://api.ebird.org/v2/ref?[REDACTED]", "secret123"},
		{"api key", "config error: api_key=abc123 is invalid", "[API_KEY_REDACTED]", "abc123"},
		{"dsn credentials", "dial postgres://birder:hunter2@db:5432/birds", "://[REDACTED]@", "hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scrubMessageForPrivacy(tt.input)
			assert.Contains(t, got, tt.contains)
			assert.NotContains(t, got, tt.absent)
		})
	}
}

func TestSentryReporter_ReportsOnce(t *testing.T) {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)

	reporter := NewSentryReporter(true, sentry.NewHub(client, sentry.NewScope()))
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := Newf("insert failed for token=abcdef").
		Component("datastore").
		Category(CategoryDatabase).
		Context("operation", "create_bird").
		Build()

	// Built errors are reported once even if reported again explicitly.
	reporter.ReportError(ee)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.True(t, ee.IsReported())
	require.Len(t, events[0].Exception, 1)
	assert.Equal(t, "Datastore Database Error Create Bird", events[0].Exception[0].Type)
	assert.False(t, strings.Contains(events[0].Message, "abcdef"), "message should be scrubbed")
}

func TestSetTelemetryReporter_DisabledReporterKeepsFastPath(t *testing.T) {
	SetTelemetryReporter(NewSentryReporter(false, nil))
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	assert.False(t, hasActiveReporting.Load())
}
