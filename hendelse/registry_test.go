package hendelse_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
)

type created struct {
	Name string `json:"name"`
}

type renamed struct {
	Name string `json:"name"`
}

func TestRegistry_EncodeDecode(t *testing.T) {
	registry := hendelse.NewRegistry()
	hendelse.RegisterJSON[created](registry, "CREATED")
	hendelse.RegisterJSON[renamed](registry, "RENAMED")

	data, err := registry.Encode("CREATED", created{Name: "a"})
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"a"}`, string(data))

	data, err = registry.Encode("RENAMED", &renamed{Name: "b"})
	require.NoError(t, err)

	payload, err := registry.Decode(hendelse.Event{Type: "RENAMED", Payload: data})
	require.NoError(t, err)
	require.Equal(t, renamed{Name: "b"}, payload)

	require.Equal(t, []hendelse.Type{"CREATED", "RENAMED"}, registry.Types())
	require.True(t, registry.Has("CREATED"))
}

func TestRegistry_Rejects(t *testing.T) {
	registry := hendelse.NewRegistry()
	hendelse.RegisterJSON[created](registry, "CREATED")

	_, err := registry.Encode("CREATED", renamed{})
	require.ErrorIs(t, err, hendelse.ErrPayloadType)

	_, err = registry.Encode("UNKNOWN", created{})
	require.ErrorIs(t, err, hendelse.ErrUnknownType)

	_, err = registry.Decode(hendelse.Event{Type: "CREATED", Payload: []byte(`{`)})
	require.Error(t, err)

	require.Panics(t, func() { hendelse.RegisterJSON[created](registry, "CREATED") })
}
