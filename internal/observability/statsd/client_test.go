package statsd

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPrefix(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  alumon.gateway  ": "alumon.gateway",
		"..gateway..":        "gateway",
		".":                  "",
		"":                   "",
	}

	for input, want := range tests {
		assert.Equal(t, want, cleanPrefix(input), "cleanPrefix(%q)", input)
	}
}

func TestCleanName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" auth/login ":       "auth_login",
		"auth..refresh":      "auth.refresh",
		"guard  redirect":    "guard__redirect",
		"api/proxy/forward.": "api_proxy_forward",
	}

	for input, want := range tests {
		assert.Equal(t, want, cleanName(input), "cleanName(%q)", input)
	}
}

func TestTagSuffix(t *testing.T) {
	t.Parallel()

	global := map[string]string{
		"env": "prod",
		// Padded key/value so the trimming path is covered.
		" service ": " gateway ",
	}
	local := map[string]string{
		"role": " admin ",
		"":     "ignored",
		"env":  "stage", // local wins
	}

	got := tagSuffix(global, local)
	assert.Equal(t, "|#env:stage,role:admin,service:gateway", got)
}

func TestTagSuffixEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, tagSuffix(nil, nil))
	assert.Empty(t, tagSuffix(map[string]string{"": "x"}, nil))
}

func TestCopyTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{
		"env": "prod",
		"":    "ignored",
	}

	cloned := copyTags(original)
	require.NotNil(t, cloned)

	cloned["env"] = "stage"
	assert.Equal(t, "prod", original["env"])
	assert.NotContains(t, cloned, "")
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{
		enabled: true,
		conn:    clientConn,
	}

	assert.True(t, client.Enabled())

	require.NoError(t, client.Close())
	assert.False(t, client.Enabled())

	// Closing again must not error.
	require.NoError(t, client.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	require.NoError(t, nilClient.Close())
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{
		Enabled: true,
		Address: "   ",
	})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{
		Enabled: true,
		Address: "bad address",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statsd dial")
}

func TestNilClientEmitsNothing(t *testing.T) {
	t.Parallel()

	var client *Client
	client.Count("auth.login", 1, nil)
	client.Gauge("sessions.live", 3, nil)
	client.Timing("auth.login.duration", 0, nil)
}
