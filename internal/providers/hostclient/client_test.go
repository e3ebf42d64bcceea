package hostclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/config"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.ClientConfig{
		BaseURL:      srv.URL + "/",
		Timeout:      5 * time.Second,
		Retries:      2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	}, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := sonic.Marshal(v)
	w.Write(data)
}

func TestCreateSendsBodyAndRequestID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/create", r.URL.Path)
		assert.Equal(t, "req-42", r.Header.Get(tracing.HeaderRequestID))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req types.CreateRequest
		require.NoError(t, sonic.Unmarshal(body, &req))
		assert.Equal(t, "<p>hi</p>", req.HTML)
		assert.Equal(t, types.Tags{"demo"}, req.Tags)

		writeJSON(w, http.StatusOK, types.CreateResponse{Success: true, ID: "abcdefghijkl", URL: "http://x/abcdefghijkl"})
	}))

	ctx := tracing.WithRequestID(context.Background(), "req-42")
	resp, err := c.Create(ctx, types.CreateRequest{HTML: "<p>hi</p>", Tags: types.Tags{"demo"}})
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijkl", resp.ID)
	assert.Equal(t, "http://x/abcdefghijkl", resp.URL)
}

func TestErrorMapping(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/project/missing00000":
			writeJSON(w, http.StatusNotFound, types.ErrorResponse{Error: "Project not found"})
		default:
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "projectName: too long"})
		}
	}))
	ctx := context.Background()

	_, err := c.Metadata(ctx, "missing00000")
	assert.True(t, errors.Is(err, types.ErrNotFound))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Project not found", apiErr.Message)

	name := "x"
	err = c.Update(ctx, "abcdefghijkl", types.UpdateRequest{ProjectName: &name})
	assert.True(t, types.IsValidation(err))
	assert.Contains(t, err.Error(), "projectName: too long")
	assert.Equal(t, resilience.StateClosed, c.BreakerState())
}

func TestSearchAndStats(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/search":
			assert.Equal(t, "space", r.URL.Query().Get("query"))
			assert.Equal(t, "css", r.URL.Query().Get("tag"))
			writeJSON(w, http.StatusOK, types.SearchResponse{Success: true, Projects: []types.HostedListing{{ID: "abcdefghijkl", Name: "Space"}}})
		case "/api/stats":
			writeJSON(w, http.StatusOK, types.StatsResponse{Success: true, Stats: &types.HostedStats{TotalProjects: 3, TotalViews: 9, Version: "1.0.0"}})
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	list, err := c.Search(ctx, "space", "css")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Space", list[0].Name)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalProjects)
	assert.Equal(t, int64(9), stats.TotalViews)
}

func TestDeleteAndExport(t *testing.T) {
	var deleted atomic.Bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/api/project/abcdefghijkl":
			deleted.Store(true)
			writeJSON(w, http.StatusOK, types.MessageResponse{Success: true, Message: "Project deleted"})
		case r.URL.Path == "/api/export/abcdefghijkl":
			w.Header().Set("Content-Type", "application/zip")
			w.Write([]byte("PK\x03\x04zip"))
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	require.NoError(t, c.Delete(ctx, "abcdefghijkl"))
	assert.True(t, deleted.Load())

	var buf bytes.Buffer
	require.NoError(t, c.Export(ctx, "abcdefghijkl", &buf))
	assert.Equal(t, "PK\x03\x04zip", buf.String())
}

func TestServerErrorsAreRetriedAndTripBreaker(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusInternalServerError, types.ErrorResponse{Error: "boom"})
	}))
	ctx := context.Background()

	_, err := c.Stats(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Message)
	assert.Equal(t, int32(3), hits.Load())

	for i := 0; i < 4; i++ {
		_, _ = c.Stats(ctx)
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	before := hits.Load()
	_, err = c.Stats(ctx)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, hits.Load())
}

func TestRetryRecovers(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, types.StatsResponse{Success: true, Stats: &types.HostedStats{TotalProjects: 1}})
	}))

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalProjects)
	assert.Equal(t, int32(2), hits.Load())
}
