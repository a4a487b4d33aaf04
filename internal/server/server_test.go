package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/edusync/internal/notify"
)

func makeServer(t *testing.T, mutate func(*Config)) *Server {
	gin.SetMode(gin.TestMode)
	rs := miniredis.RunT(t)

	c := DefaultConfig()
	c.Store.Driver = StoreDriverMemory
	c.Redis.Leaderboard.Addrs = []string{rs.Addr()}
	c.Redis.Pubsub.Addrs = []string{rs.Addr()}
	if mutate != nil {
		mutate(&c)
	}

	s, err := Init(c)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	return s
}

func TestServer_Routes(t *testing.T) {
	s := makeServer(t, nil)

	tests := map[string]struct {
		path string
		want int
	}{
		"health":       {path: "/healthz", want: http.StatusOK},
		"results":      {path: "/results", want: http.StatusOK},
		"metrics":      {path: "/metrics", want: http.StatusOK},
		"unknown path": {path: "/quizzes", want: http.StatusNotFound},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.http.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServer_RedisNotifyDriver(t *testing.T) {
	s := makeServer(t, func(c *Config) { c.Notify.Driver = notify.DriverRedis })

	require.NotNil(t, s.infra.redis.pubsub)
	assert.IsType(t, &notify.Redis{}, s.publisher)
}

func TestInit_Errors(t *testing.T) {
	rs := miniredis.RunT(t)

	tests := map[string]struct {
		mutate  func(*Config)
		wantErr string
	}{
		"unknown store driver": {
			mutate:  func(c *Config) { c.Store.Driver = "sqlite" },
			wantErr: `unsupported driver "sqlite"`,
		},
		"unknown notify driver": {
			mutate: func(c *Config) {
				c.Store.Driver = StoreDriverMemory
				c.Notify.Driver = "eventgrid"
			},
			wantErr: `unsupported driver "eventgrid"`,
		},
		"kafka without brokers": {
			mutate: func(c *Config) {
				c.Store.Driver = StoreDriverMemory
				c.Notify.Driver = notify.DriverKafka
			},
			wantErr: "init publisher",
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			c.Redis.Leaderboard.Addrs = []string{rs.Addr()}
			tt.mutate(&c)

			_, err := Init(c)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
		})
	}
}
