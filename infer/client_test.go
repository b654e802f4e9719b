package infer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInferPostsFixedDefaultsAndReturnsText(t *testing.T) {
	var gotReq completionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionResponse{
			Choices: []struct {
				Text string `json:"text"`
			}{{Text: "generated output"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "Qwen/Qwen3-8B", 5*time.Second)
	out, err := c.Infer(t.Context(), "hello there")
	require.NoError(t, err)
	require.Equal(t, "generated output", out)

	require.Equal(t, "Qwen/Qwen3-8B", gotReq.Model)
	require.Equal(t, "hello there", gotReq.Prompt)
	require.Equal(t, 512, gotReq.MaxTokens)
	require.InDelta(t, 0.7, gotReq.Temperature, 0.0001)
}

func TestInferErrorsOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 5*time.Second)
	_, err := c.Infer(t.Context(), "hello")
	require.Error(t, err)
}
