package push

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidSubscription(t *testing.T) {
	valid := `{"endpoint":"https://push.example/abc","keys":{"p256dh":"k1","auth":"k2"}}`
	require.True(t, ValidSubscription([]byte(valid)))

	cases := map[string]string{
		"not json":         `nope`,
		"missing endpoint": `{"keys":{"p256dh":"k1","auth":"k2"}}`,
		"missing p256dh":   `{"endpoint":"https://push.example/abc","keys":{"auth":"k2"}}`,
		"missing auth":     `{"endpoint":"https://push.example/abc","keys":{"p256dh":"k1"}}`,
		"empty":            `{}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			require.False(t, ValidSubscription([]byte(raw)))
		})
	}
}

func TestNewSender_DisabledWithoutKeys(t *testing.T) {
	require.Nil(t, NewSender(nil, "", "", ""))
	require.Nil(t, NewSender(nil, "pub", "", ""))
	require.NotNil(t, NewSender(nil, "pub", "priv", ""))
}
