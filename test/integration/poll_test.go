package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/pollpulse/api/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listPolls(t *testing.T, app *TestApp, query string) []*domain.PollSummary {
	t.Helper()

	res, err := app.Client.Get(app.Server.URL + "/api/polls" + query)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var polls []*domain.PollSummary
	require.NoError(t, json.NewDecoder(res.Body).Decode(&polls))
	return polls
}

func TestCreatePollValidationOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	owner := uuid.New()
	post := func(payload map[string]any) int {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		req, err := http.NewRequest("POST", app.Server.URL+"/api/polls", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(&http.Cookie{Name: "access_token", Value: voterToken(t, owner)})
		resp, err := app.Client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusCreated, post(map[string]any{
		"question": "Valid?", "options": []string{"Yes", "No"},
	}))
	assert.Equal(t, http.StatusBadRequest, post(map[string]any{
		"question": "One option", "options": []string{"Only"},
	}))
	assert.Equal(t, http.StatusBadRequest, post(map[string]any{
		"question": "Dup", "options": []string{"Red", "RED"},
	}))
	assert.Equal(t, http.StatusBadRequest, post(map[string]any{
		"options": []string{"A", "B"},
	}))
}

func TestCreatePollRequiresAuth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	body, _ := json.Marshal(map[string]any{"question": "Q?", "options": []string{"A", "B"}})
	resp, err := app.Client.Post(app.Server.URL+"/api/polls", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListPollsSortedByVotes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	owner := uuid.New()
	quiet := createPoll(t, app, owner, map[string]any{
		"question": "Quiet poll", "options": []string{"A", "B"},
	})
	popular := createPoll(t, app, owner, map[string]any{
		"question": "Popular poll", "options": []string{"A", "B"},
	})

	for i := 0; i < 3; i++ {
		resp := submitVote(t, app, popular.ID, uuid.New(), 0)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
	app.drainJobs(t)

	polls := listPolls(t, app, "?sort_by=votes")
	require.Len(t, polls, 2)
	assert.Equal(t, popular.ID, polls[0].ID)
	assert.Equal(t, quiet.ID, polls[1].ID)
	assert.Equal(t, int64(3), polls[0].TotalVotes)
}

func TestListPollsSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	owner := uuid.New()
	createPoll(t, app, owner, map[string]any{
		"question": "Favorite color?", "options": []string{"Red", "Blue"},
	})
	createPoll(t, app, owner, map[string]any{
		"question": "Best season?", "options": []string{"Summer", "Winter"},
	})

	polls := listPolls(t, app, "?search=color")
	require.Len(t, polls, 1)
	assert.Equal(t, "Favorite color?", polls[0].Question)
}

func TestVisibilityChangeHidesPollFromListing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	owner := uuid.New()
	poll := createPoll(t, app, owner, map[string]any{
		"question": "Now you see me", "options": []string{"A", "B"},
	})

	require.Len(t, listPolls(t, app, ""), 1)

	body, _ := json.Marshal(map[string]any{"public": false})
	req, err := http.NewRequest("PATCH",
		fmt.Sprintf("%s/api/polls/%s/visibility", app.Server.URL, poll.ID), bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "access_token", Value: voterToken(t, owner)})
	resp, err := app.Client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// The visibility change invalidates listing caches immediately.
	assert.Empty(t, listPolls(t, app, ""))
}

func TestDeletePollCascadesLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	owner := uuid.New()
	poll := createPoll(t, app, owner, map[string]any{
		"question": "Doomed", "options": []string{"A", "B"},
	})

	resp := submitVote(t, app, poll.ID, uuid.New(), 0)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest("DELETE",
		fmt.Sprintf("%s/api/polls/%s", app.Server.URL, poll.ID), nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: voterToken(t, owner)})
	resp, err = app.Client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	var votes int
	err = app.DB.QueryRow("SELECT COUNT(*) FROM votes WHERE poll_id = $1", poll.ID).Scan(&votes)
	require.NoError(t, err)
	assert.Equal(t, 0, votes)

	res, err := app.Client.Get(fmt.Sprintf("%s/api/polls/%s", app.Server.URL, poll.ID))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAnalyticsViewStaysConsistent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app := setupTestApp(t)
	defer app.Teardown(t)

	poll := createPoll(t, app, uuid.New(), map[string]any{
		"question": "Analytics", "options": []string{"A", "B"},
	})

	for i := 0; i < 2; i++ {
		resp := submitVote(t, app, poll.ID, uuid.New(), 1)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}
	app.drainJobs(t)

	var total, ledger int64
	err := app.DB.QueryRow(
		"SELECT total_votes, ledger_votes FROM poll_vote_summary WHERE poll_id = $1", poll.ID).
		Scan(&total, &ledger)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, ledger, total, "aggregate matches the ledger after settling")
}
