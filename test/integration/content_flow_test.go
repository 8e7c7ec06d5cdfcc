package integration

import (
	"errors"
	"net/http"
	"strconv"
	"testing"
)

func TestContentToolsRecordCreations(t *testing.T) {
	ts, client := newAuthTestServer(t)
	reg := registerUser(t, ts, client, "writer@example.com")
	auth := bearer(reg.AccessToken)

	resp, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/ai/write-article", map[string]any{"topic": "Go testing", "length": 300}, auth)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("write-article: status=%d message=%q", resp.StatusCode, env.Message)
	}
	resp, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/ai/blog-titles", map[string]any{"topic": "Go testing", "count": 3}, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("blog-titles: status=%d", resp.StatusCode)
	}
	var titles struct {
		Titles []struct {
			Title string `json:"title"`
		} `json:"titles"`
	}
	decodeData(t, env, &titles)
	if len(titles.Titles) != 3 || titles.Titles[0].Title != "First Title" {
		t.Fatalf("unexpected titles %s", env.Data)
	}

	resp, env = doJSON(t, client, http.MethodGet, ts.URL+"/api/user/stats", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: %d", resp.StatusCode)
	}
	var stats struct {
		Stats struct {
			TotalCreations   int64 `json:"totalCreations"`
			CreditsUsed      int64 `json:"creditsUsed"`
			CreditsRemaining int64 `json:"creditsRemaining"`
		} `json:"stats"`
	}
	decodeData(t, env, &stats)
	if stats.Stats.TotalCreations != 2 || stats.Stats.CreditsUsed != 20 || stats.Stats.CreditsRemaining != 80 {
		t.Fatalf("unexpected stats %s", env.Data)
	}

	resp, env = doJSON(t, client, http.MethodGet, ts.URL+"/api/user/creations?page=1&page_size=10", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("creations: %d", resp.StatusCode)
	}
	var list struct {
		Creations []struct {
			ID uint `json:"id"`
		} `json:"creations"`
		Total int64 `json:"total"`
	}
	decodeData(t, env, &list)
	if list.Total != 2 || len(list.Creations) != 2 {
		t.Fatalf("unexpected creations %s", env.Data)
	}

	other := registerUser(t, ts, client, "other@example.com")
	target := ts.URL + "/api/user/creations/" + strconv.FormatUint(uint64(list.Creations[0].ID), 10)
	if resp, _ := doJSON(t, client, http.MethodDelete, target, nil, bearer(other.AccessToken)); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleting another user's creation must 404, got %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, client, http.MethodDelete, target, nil, auth); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete own creation: %d", resp.StatusCode)
	}
}

func TestContentRoutesRequireAuthAndValidate(t *testing.T) {
	ts, client := newAuthTestServer(t)
	if resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/ai/write-article", map[string]string{"topic": "x"}, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	reg := registerUser(t, ts, client, "validate@example.com")
	if resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/ai/write-article", map[string]string{}, bearer(reg.AccessToken)); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing topic, got %d", resp.StatusCode)
	}

	ts.Generator.mu.Lock()
	ts.Generator.err = errors.New("upstream down")
	ts.Generator.mu.Unlock()
	if resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/ai/write-article", map[string]string{"topic": "x"}, bearer(reg.AccessToken)); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 on generator failure, got %d", resp.StatusCode)
	}
}

func TestReviewResumeFallsBackOnFreeText(t *testing.T) {
	ts, client := newAuthTestServer(t)
	reg := registerUser(t, ts, client, "resume@example.com")
	auth := bearer(reg.AccessToken)

	resp, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/ai/review-resume",
		map[string]string{"resume": "Ada Lovelace\nAnalytical engines", "targetRole": "Backend Engineer"}, auth)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("review-resume: status=%d message=%q", resp.StatusCode, env.Message)
	}
	var review struct {
		OverallScore int `json:"overallScore"`
		ATSScore     int `json:"atsScore"`
	}
	decodeData(t, env, &review)
	if review.OverallScore != 75 || review.ATSScore != 70 {
		t.Fatalf("expected fallback scores, got %s", env.Data)
	}

	resp, env = doJSON(t, client, http.MethodGet, ts.URL+"/api/user/creations", nil, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("creations: %d", resp.StatusCode)
	}
	var list struct {
		Creations []struct {
			Type   string `json:"type"`
			Prompt string `json:"prompt"`
		} `json:"creations"`
	}
	decodeData(t, env, &list)
	if len(list.Creations) != 1 || list.Creations[0].Type != "resume" || list.Creations[0].Prompt != "Backend Engineer" {
		t.Fatalf("unexpected creations %s", env.Data)
	}

	if resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/ai/review-resume", map[string]string{}, auth); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without resume, got %d", resp.StatusCode)
	}
}
