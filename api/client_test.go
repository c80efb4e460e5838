package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskbotapp/taskbot-go/api"
	"github.com/taskbotapp/taskbot-go/credentials"
	"github.com/taskbotapp/taskbot-go/credentials/storefake"
)

func newClient(t *testing.T, handler http.Handler) (*api.Client, *storefake.FakeStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := storefake.NewFakeStore()
	return api.New(srv.URL, store), store
}

func TestDoAttachesHeaders(t *testing.T) {
	var got http.Header
	client, store := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		fmt.Fprint(w, `{}`)
	}))
	store.Set(credentials.KeySessionID, "sess-1")
	store.Set(credentials.KeyAccessToken, "a1")

	err := client.Do(context.Background(), api.Request{
		Endpoint:     "/chats",
		RequiresAuth: true,
		Headers:      map[string]string{"X-Custom": "yes", "Accept": "application/vnd.custom"},
	}, nil)
	require.NoError(t, err)

	require.Equal(t, "sess-1", got.Get("X-Session-ID"))
	require.Equal(t, "Bearer a1", got.Get("Authorization"))
	require.Equal(t, "application/json", got.Get("Content-Type"))
	require.NotEmpty(t, got.Get("X-Request-ID"))
	// Caller-supplied headers are applied last and win.
	require.Equal(t, "yes", got.Get("X-Custom"))
	require.Equal(t, "application/vnd.custom", got.Get("Accept"))
}

func TestDoOmitsBearerWhenNotRequired(t *testing.T) {
	var got http.Header
	client, store := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		fmt.Fprint(w, `{}`)
	}))
	store.Set(credentials.KeyAccessToken, "a1")

	err := client.Do(context.Background(), api.Request{Endpoint: "/auth/sessions/new"}, nil)
	require.NoError(t, err)
	require.Empty(t, got.Get("Authorization"))
}

// Covers the full scenario: stored session id and refresh token, first call
// 401s, refresh mints a new access token, retry succeeds with it.
func TestDoRefreshesAndRetriesOn401(t *testing.T) {
	var chatCalls, refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/chats", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&chatCalls, 1) == 1 {
			require.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "Bearer a2", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"chats":[{"id":7}]}`)
	})
	mux.HandleFunc("/auth/jwt/refresh/new", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "r1", r.Form.Get("token"))
		fmt.Fprint(w, `{"access_token":"a2"}`)
	})

	client, store := newClient(t, mux)
	store.Set(credentials.KeySessionID, "sess-1")
	store.Set(credentials.KeyAccessToken, "a1")
	store.Set(credentials.KeyRefreshToken, "r1")

	var out struct {
		Chats []struct {
			ID int `json:"id"`
		} `json:"chats"`
	}
	err := client.Do(context.Background(), api.Request{
		Endpoint:     "/chats?offset=0&limit=50",
		RequiresAuth: true,
	}, &out)
	require.NoError(t, err)
	require.Len(t, out.Chats, 1)
	require.EqualValues(t, 1, refreshCalls)
	require.EqualValues(t, 2, chatCalls)

	accessToken, _ := store.Get(credentials.KeyAccessToken)
	require.Equal(t, "a2", accessToken)
}

func TestDoSurfacesSecond401WithoutLooping(t *testing.T) {
	var chatCalls, refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/chats", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&chatCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/jwt/refresh/new", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		fmt.Fprint(w, `{"access_token":"a2"}`)
	})

	client, store := newClient(t, mux)
	store.Set(credentials.KeyRefreshToken, "r1")

	err := client.Do(context.Background(), api.Request{Endpoint: "/chats", RequiresAuth: true}, nil)
	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	require.EqualValues(t, 1, refreshCalls, "exactly one refresh per call")
	require.EqualValues(t, 2, chatCalls, "exactly one retry per call")
}

func TestDo401WithoutRefreshTokenSurfacesOriginalStatus(t *testing.T) {
	var chatCalls int32
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&chatCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := client.Do(context.Background(), api.Request{Endpoint: "/chats", RequiresAuth: true}, nil)
	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	require.EqualValues(t, 1, chatCalls, "no retry without a refresh token")
}

func TestDo401WithoutAuthRequirementIsNotRetried(t *testing.T) {
	var calls int32
	client, store := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	store.Set(credentials.KeyRefreshToken, "r1")

	err := client.Do(context.Background(), api.Request{Endpoint: "/public"}, nil)
	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.EqualValues(t, 1, calls)
}

func TestDoErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "structured detail body",
			status: http.StatusNotFound,
			body:   `{"detail":"chat not found"}`,
			check: func(t *testing.T, err error) {
				var apiErr *api.APIError
				require.ErrorAs(t, err, &apiErr)
				require.Equal(t, "chat not found", apiErr.Error())
				require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
			},
		},
		{
			name:   "structured message body",
			status: http.StatusBadRequest,
			body:   `{"message":"bad offset"}`,
			check: func(t *testing.T, err error) {
				var apiErr *api.APIError
				require.ErrorAs(t, err, &apiErr)
				require.Equal(t, "bad offset", apiErr.Error())
			},
		},
		{
			name:   "unstructured body",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, err error) {
				var httpErr *api.HTTPError
				require.ErrorAs(t, err, &httpErr)
				require.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
			},
		},
		{
			name:   "2xx with malformed body",
			status: http.StatusOK,
			body:   `{"chats":`,
			check: func(t *testing.T, err error) {
				var decodeErr *api.DecodeError
				require.ErrorAs(t, err, &decodeErr)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			var out map[string]any
			err := client.Do(context.Background(), api.Request{Endpoint: "/chats"}, &out)
			tc.check(t, err)
		})
	}
}

func TestDoTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	client := api.New(srv.URL, storefake.NewFakeStore())
	err := client.Do(context.Background(), api.Request{Endpoint: "/chats"}, nil)
	var netErr *api.NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestRefreshTokensRotationIsOptional(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantRefresh string
	}{
		{"rotated", `{"access_token":"A","refresh_token":"B"}`, "B"},
		{"not rotated", `{"access_token":"A"}`, "r1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, store := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.response)
			}))
			store.Set(credentials.KeyRefreshToken, "r1")

			pair, err := client.RefreshTokens(context.Background())
			require.NoError(t, err)
			require.Equal(t, "A", pair.AccessToken)

			accessToken, _ := store.Get(credentials.KeyAccessToken)
			require.Equal(t, "A", accessToken)
			refreshToken, _ := store.Get(credentials.KeyRefreshToken)
			require.Equal(t, tc.wantRefresh, refreshToken)
		})
	}
}

func TestRefreshTokensWithoutStoredToken(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("refresh endpoint must not be called")
	}))

	_, err := client.RefreshTokens(context.Background())
	require.ErrorIs(t, err, api.ErrNoRefreshToken)
}

// Concurrent 401s must coalesce onto a single refresh network call, with all
// waiters observing its one outcome.
func TestConcurrent401sShareOneRefresh(t *testing.T) {
	const workers = 8

	var refreshCalls int32
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/chats", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer a2" {
			fmt.Fprint(w, `{}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/auth/jwt/refresh/new", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		<-release // hold every 401 caller at the refresh barrier
		fmt.Fprint(w, `{"access_token":"a2"}`)
	})

	client, store := newClient(t, mux)
	store.Set(credentials.KeyAccessToken, "a1")
	store.Set(credentials.KeyRefreshToken, "r1")

	var wg sync.WaitGroup
	errs := make([]error, workers)
	ready := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-ready
			errs[i] = client.Do(context.Background(), api.Request{
				Endpoint:     "/chats",
				RequiresAuth: true,
			}, nil)
		}(i)
	}
	close(ready)

	// Give every worker time to hit the 401 and queue behind the refresh.
	for atomic.LoadInt32(&refreshCalls) == 0 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	require.EqualValues(t, 1, refreshCalls, "refresh calls must coalesce")
}

func TestPostFormEncodesBody(t *testing.T) {
	var contentType, body string
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		body = r.Form.Encode()
		fmt.Fprint(w, `{"access_token":"x"}`)
	}))

	var out map[string]any
	err := client.PostForm(context.Background(), "/auth/jwt/refresh/new",
		map[string][]string{"token": {"r 1"}}, &out)
	require.NoError(t, err)
	require.Equal(t, "application/x-www-form-urlencoded", contentType)
	require.Equal(t, "token=r+1", body)
}

func TestDoSendsJSONBody(t *testing.T) {
	var received map[string]any
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		fmt.Fprint(w, `{}`)
	}))

	body, _ := json.Marshal(map[string]any{"recipient_id": 12, "content": "hi"})
	err := client.Do(context.Background(), api.Request{
		Endpoint: "/chats/messages",
		Method:   http.MethodPost,
		Body:     body,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "hi", received["content"])
}
