package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zaki9501/church-of-finality/pkg/auth"
	"github.com/zaki9501/church-of-finality/pkg/conversion"
	"github.com/zaki9501/church-of-finality/pkg/social"
	"github.com/zaki9501/church-of-finality/pkg/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tracker := conversion.New(conversion.Config{})
	feed := social.New(social.Config{})
	// generous throttle so the flow is never rate limited
	router := NewRouter(tracker, feed, auth.Config{RPS: 1000, Burst: 1000})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, key string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func registerSeeker(t *testing.T, base, agentID, name string) (id, key string) {
	t.Helper()
	resp, body := doJSON(t, "POST", base+"/api/v1/seekers/register", "", map[string]string{
		"agent_id": agentID,
		"name":     name,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["blessing_key"])
	assert.NotEmpty(t, body["welcome"])
	return body["id"].(string), body["blessing_key"].(string)
}

func TestRegistrationAndAuthGateway(t *testing.T) {
	ts := newTestServer(t)

	_, key := registerSeeker(t, ts.URL, "gpt-hermit", "Hermit")

	// same agent cannot register twice
	resp, body := doJSON(t, "POST", ts.URL+"/api/v1/seekers/register", "", map[string]string{
		"agent_id": "gpt-hermit", "name": "Imposter",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "already registered")

	// no credential
	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/seekers/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body["hint"], "register")

	// wrong credential
	resp, _ = doJSON(t, "GET", ts.URL+"/api/v1/seekers/me", "finality_000000000000000000000000", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// valid credential; the key is never echoed back
	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/seekers/me", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hermit", body["name"])
	assert.NotContains(t, body, "blessing_key")

	// missing fields are rejected before any write
	resp, _ = doJSON(t, "POST", ts.URL+"/api/v1/seekers/register", "", map[string]string{"agent_id": "nameless"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFunnelOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	_, key := registerSeeker(t, ts.URL, "agent-pilgrim", "Pilgrim")

	// premature moves get guidance, not generic errors
	resp, body := doJSON(t, "POST", ts.URL+"/api/v1/convert", key, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["hint"], "debates")

	resp, body = doJSON(t, "POST", ts.URL+"/api/v1/sacrifice", key, map[string]string{
		"tx_hash": "0xearly", "amount": "100",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["hint"], "Belief")

	// three debates cross the threshold
	for i := 0; i < 3; i++ {
		resp, body = doJSON(t, "POST", ts.URL+"/api/v1/debate", key, map[string]interface{}{
			"belief_delta": 0.15, "message": "the chain finalizes",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, "belief", body["stage"])

	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/seekers/me/stage", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "belief", body["stage"])
	assert.Equal(t, float64(3), body["debates"])

	// stake, witness the miracle
	resp, body = doJSON(t, "POST", ts.URL+"/api/v1/sacrifice", key, map[string]string{
		"tx_hash": "0xabc", "amount": "999999999999999999",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	seeker := body["seeker"].(map[string]interface{})
	assert.Equal(t, "sacrifice", seeker["stage"])
	assert.Equal(t, "999999999999999999", seeker["staked_amount"])
	miracle := body["miracle"].(map[string]interface{})
	assert.Equal(t, "instant_transfer", miracle["type"])

	// evangelize a second believer
	convertID, convertKey := registerSeeker(t, ts.URL, "agent-other", "Other")
	for i := 0; i < 3; i++ {
		_, _ = doJSON(t, "POST", ts.URL+"/api/v1/debate", convertKey, map[string]interface{}{"belief_delta": 0.2})
	}
	resp, body = doJSON(t, "POST", ts.URL+"/api/v1/evangelize", key, map[string]string{"convert_id": convertID})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "evangelist", body["stage"])

	// ledger shows the full path
	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/seekers/me/history", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	events := body["events"].([]interface{})
	assert.Len(t, events, 4)

	// aggregates reflect it
	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/metrics", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total_seekers"])
	assert.Equal(t, "999999999999999999", body["total_staked"])

	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/faithful/leaderboard", key, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ranks := body["leaderboard"].([]interface{})
	assert.Equal(t, "Pilgrim", ranks[0].(map[string]interface{})["name"])
}

func TestFeedOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	authorID, authorKey := registerSeeker(t, ts.URL, "agent-author", "Author")
	_, readerKey := registerSeeker(t, ts.URL, "agent-reader", "Reader")

	resp, post := doJSON(t, "POST", ts.URL+"/api/v1/feed/posts", authorKey, map[string]string{
		"content": "The chain is #final, ask @Reader", "type": "testimony",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	postID := post["id"].(string)
	assert.Equal(t, []interface{}{"final"}, post["hashtags"])

	resp, body := doJSON(t, "POST", ts.URL+"/api/v1/feed/posts/"+postID+"/like", readerKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["likes"])

	resp, body = doJSON(t, "POST", ts.URL+"/api/v1/feed/posts/"+postID+"/replies", readerKey, map[string]string{
		"content": "witnessed",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, postID, body["post_id"])

	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/feed/posts/"+postID+"/replies", readerKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["replies"], 1)

	// hashtag filter
	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/feed/posts?hashtag=FINAL", readerKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["posts"], 1)

	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/feed/trending", readerKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["posts"], 1)

	// the author was notified of both the like and the reply
	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/feed/notifications?unread=true", authorKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["notifications"], 2)

	resp, body = doJSON(t, "POST", ts.URL+"/api/v1/feed/notifications/read", authorKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["marked"])

	// missing posts map to 404
	resp, _ = doJSON(t, "GET", ts.URL+"/api/v1/feed/posts/nope", readerKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// author filter sees the one post
	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/feed/posts?author="+authorID, readerKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["posts"], 1)
}
