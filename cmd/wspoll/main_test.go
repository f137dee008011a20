//go:build !js

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"nhooyr.io/pollws"
	"nhooyr.io/pollws/internal/test/assert"
	"nhooyr.io/pollws/internal/test/wstest"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		exp     config
		success bool
	}{
		{
			name: "url",
			args: []string{"--url", "ws://localhost", "-i", "1s", "--insecure"},
			exp: config{
				url:      "ws://localhost",
				interval: time.Second,
				insecure: true,
			},
			success: true,
		},
		{
			name: "positional",
			args: []string{"-v", "wss://localhost"},
			exp: config{
				url:      "wss://localhost",
				interval: time.Millisecond * 10,
				verbose:  true,
			},
			success: true,
		},
		{
			name: "missingURL",
			args: []string{"--proxy", "localhost:1080"},
		},
		{
			name: "badInterval",
			args: []string{"--url", "ws://localhost", "--interval", "0s"},
		},
		{
			name: "unknownFlag",
			args: []string{"--nope"},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := parseFlags(tc.args)
			if !tc.success {
				assert.Error(t, err)
				return
			}
			assert.Success(t, err)
			assert.Equal(t, "config", tc.exp, cfg)
		})
	}
}

func TestSession(t *testing.T) {
	t.Parallel()

	s := wstest.NewServer()
	defer s.Close()

	c, err := pollws.Open(s.URL("/echo"), nil)
	assert.Success(t, err)
	defer c.Close()

	var out bytes.Buffer
	ss := &session{
		c:     c,
		out:   &out,
		state: c.State(),
	}
	ctx := context.Background()

	assert.Equal(t, "continue", true, ss.handle(ctx, "hello"))
	deadline := time.Now().Add(time.Second * 10)
	for !strings.Contains(out.String(), "< hello") {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for echo: %q", out.String())
		}
		ss.poll()
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, "continue", true, ss.handle(ctx, "/state"))
	assert.Contains(t, out.String(), "state: Connected")

	assert.Equal(t, "continue", true, ss.handle(ctx, "/revive"))
	assert.Contains(t, out.String(), "revive: true")

	assert.Equal(t, "continue", false, ss.handle(ctx, "/quit"))
	assert.Equal(t, "state", pollws.StateClosed, c.State())

	ss.poll()
	assert.Contains(t, out.String(), "state: Closed")

	assert.Equal(t, "continue", true, ss.handle(ctx, "lost"))
	assert.Contains(t, out.String(), "not sent, state: Closed")
}
