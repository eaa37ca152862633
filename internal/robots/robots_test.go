package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breadcrumbs/internal/config"
)

func TestAgentHonoursRules(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte("User-agent: KSPB Breadcrumbs Bot\nDisallow: /private/\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer srv.Close()

	agent := NewAgent(config.ScrapeConfig{RespectRobots: true, RobotsCacheTTL: config.DurationFrom(time.Hour)}, config.BotMarker, srv.Client())
	ctx := context.Background()

	open, err := url.Parse(srv.URL + "/blog/")
	require.NoError(t, err)
	private, err := url.Parse(srv.URL + "/private/page/")
	require.NoError(t, err)

	assert.True(t, agent.Allowed(ctx, open))
	assert.False(t, agent.Allowed(ctx, private))
	assert.Equal(t, int32(1), fetches.Load(), "rules are cached per host")

	agent.Purge(open.Host)
	assert.True(t, agent.Allowed(ctx, open))
	assert.Equal(t, int32(2), fetches.Load())
}

func TestAgentDisabledAllowsEverything(t *testing.T) {
	agent := NewAgent(config.ScrapeConfig{}, config.BotMarker, nil)
	target, err := url.Parse("https://example.com/private/")
	require.NoError(t, err)
	assert.True(t, agent.Allowed(context.Background(), target))

	relative, err := url.Parse("/private/")
	require.NoError(t, err)
	assert.False(t, agent.Allowed(context.Background(), relative))
}

func TestAgentFailsOpen(t *testing.T) {
	agent := NewAgent(config.ScrapeConfig{RespectRobots: true}, config.BotMarker, nil)
	target, err := url.Parse("http://127.0.0.1:1/page/")
	require.NoError(t, err)
	assert.True(t, agent.Allowed(context.Background(), target))
}

func TestAgentServerErrorAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	agent := NewAgent(config.ScrapeConfig{RespectRobots: true}, config.BotMarker, srv.Client())
	target, err := url.Parse(srv.URL + "/private/page/")
	require.NoError(t, err)
	assert.True(t, agent.Allowed(context.Background(), target))
}
