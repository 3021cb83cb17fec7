package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"use60backend/models"
	"use60backend/usecases/jobs"
)

func TestParseJobOptions_EmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/cron/daily-digest", nil)

	opts, err := parseJobOptions(req)
	require.NoError(t, err)
	assert.Equal(t, jobs.JobOptions{}, opts)
}

func TestParseJobOptions_NarrowingMarksManual(t *testing.T) {
	req := httptest.NewRequest("POST", "/cron/morning-brief",
		strings.NewReader(`{"orgId": "org_1", "userId": "u_1"}`))

	opts, err := parseJobOptions(req)
	require.NoError(t, err)
	assert.Equal(t, models.OrgID("org_1"), opts.OrgID)
	assert.Equal(t, "u_1", opts.UserID)
	assert.True(t, opts.Manual)
}

func TestParseJobOptions_EmptyObjectStaysScheduled(t *testing.T) {
	req := httptest.NewRequest("POST", "/cron/deal-momentum", strings.NewReader(`{}`))

	opts, err := parseJobOptions(req)
	require.NoError(t, err)
	assert.False(t, opts.Manual)
}

func TestParseJobOptions_MalformedBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/cron/reengagement", strings.NewReader(`{not json`))

	_, err := parseJobOptions(req)
	assert.Error(t, err)
}
