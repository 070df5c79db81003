package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/telelog/param"
)

// partialListener implements only the one hook it cares about.
type partialListener struct {
	NoopServerListener
	subscribed []string
}

func (l *partialListener) OnSubscribe(_ Client, channel ChannelView) {
	l.subscribed = append(l.subscribed, channel.Topic)
}

func TestNoopServerListener_Defaults(t *testing.T) {
	var l ServerListener = NoopServerListener{}

	// Hooks with results return safe defaults.
	assert.Nil(t, l.OnGetParameters(Client{ID: 1}, []string{"a"}, ""))

	params := []param.Parameter{param.Float64Param("gain", 1.5)}
	assert.Equal(t, params, l.OnSetParameters(Client{ID: 1}, params, "req-1"))

	// Pure notification hooks are callable no-ops.
	l.OnSubscribe(Client{ID: 1}, ChannelView{ID: 2, Topic: "/imu"})
	l.OnUnsubscribe(Client{ID: 1}, ChannelView{ID: 2, Topic: "/imu"})
	l.OnClientAdvertise(Client{ID: 1}, ClientChannel{ID: 3, Topic: "/cmd"})
	l.OnClientUnadvertise(Client{ID: 1}, 3)
	l.OnMessageData(Client{ID: 1}, 3, []byte("payload"))
	l.OnParametersSubscribe([]string{"gain"})
	l.OnParametersUnsubscribe([]string{"gain"})
	l.OnConnectionGraphSubscribe()
	l.OnConnectionGraphUnsubscribe()
}

func TestPartialListener_OverridesSingleHook(t *testing.T) {
	l := &partialListener{}
	var iface ServerListener = l

	iface.OnSubscribe(Client{ID: 7}, ChannelView{ID: 1, Topic: "/camera"})
	iface.OnMessageData(Client{ID: 7}, 1, nil) // still a no-op

	assert.Equal(t, []string{"/camera"}, l.subscribed)
}

func TestNextID_Monotonic(t *testing.T) {
	a := NextID()
	b := NextID()
	assert.Greater(t, b, a)
}

func TestAssetResult(t *testing.T) {
	found := FoundAsset([]byte("mesh"))
	assert.True(t, found.Found)
	assert.Equal(t, []byte("mesh"), found.Data)

	missing := AssetNotFound()
	assert.False(t, missing.Found)
	assert.Nil(t, missing.Data)
}
