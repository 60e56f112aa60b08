package chatclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", WithTimeout(2*time.Second))
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:5000", "://nope"} {
		_, err := NewClient(u)
		require.Error(t, err, u)
	}
}

func TestSend_HappyPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chatbot", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]string{"message": " hi there ", "conversationId": "conv-1"}, body)

		_, _ = w.Write([]byte(`{"reply":"Hello!","conversationId":"conv-1"}`))
	})

	reply, err := c.Send(context.Background(), " hi there ", "conv-1")
	require.NoError(t, err)
	require.Equal(t, Reply{Text: "Hello!", ConversationID: "conv-1"}, reply)
}

func TestSend_OmitsEmptyConversationID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"message":"hi"}`, string(raw))
		_, _ = w.Write([]byte(`{"reply":"ok"}`))
	})
	_, err := c.Send(context.Background(), "hi", "")
	require.NoError(t, err)
}

func TestSend_MalformedResponses(t *testing.T) {
	for _, body := range []string{`not-json`, `{}`, `{"reply":""}`, `{"answer":"wrong field"}`} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		_, err := c.Send(context.Background(), "hi", "")
		require.ErrorIs(t, err, ErrMalformedResponse, body)
	}
}

func TestSend_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"RATE_LIMITED","message":"llm_rate_limited"}`))
	})
	_, err := c.Send(context.Background(), "hi", "")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Equal(t, "RATE_LIMITED", statusErr.Code)
	require.Equal(t, "llm_rate_limited", statusErr.Message)
	require.Contains(t, err.Error(), "429")
}

func TestSend_StatusErrorWithoutJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	})
	_, err := c.Send(context.Background(), "hi", "")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.Empty(t, statusErr.Code)
}

func TestSend_TransportError(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1", WithTimeout(200*time.Millisecond))
	require.NoError(t, err)
	_, err = c.Send(context.Background(), "hi", "")
	require.ErrorIs(t, err, ErrTransport)
}

func TestSend_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, "hi", "")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "request cancelled", Describe(err))
}

func TestHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/history", r.URL.Path)
		require.Equal(t, "conv 1", r.URL.Query().Get("conversationId"))
		_, _ = w.Write([]byte(`{"conversationId":"conv 1","total":2,"exchanges":[
			{"conversationId":"conv 1","message":"a","reply":"b","createdAt":"2026-03-01T09:00:00Z"},
			{"conversationId":"conv 1","message":"c","reply":"d","createdAt":"2026-03-01T09:01:00Z"}]}`))
	})

	got, err := c.History(context.Background(), "conv 1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].Message)
	require.Equal(t, "d", got[1].Reply)
}

func TestAnalyze(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		content, _ := io.ReadAll(f)
		require.Equal(t, "resume.pdf", hdr.Filename)
		require.Equal(t, "%PDF-1.4 body", string(content))
		_, _ = w.Write([]byte(`{"score":72,"strengths":["SQL"],"summary":"ok"}`))
	})

	out, err := c.Analyze(context.Background(), "resume.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	require.Equal(t, 72, out.Score)
	require.Equal(t, []string{"SQL"}, out.Strengths)
}
