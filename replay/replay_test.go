package replay_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/replay"
	"github.com/navikt/su-se-bakover-sub020/replay/replaytest"
)

type opened struct {
	Start int `json:"start"`
}

type added struct {
	N int `json:"n"`
}

type closed struct{}

type counter struct {
	Total  int
	Closed bool
}

func (c *counter) StateName() string {
	if c == nil {
		return "none"
	}
	if c.Closed {
		return "Closed"
	}
	return "Open"
}

type limit struct {
	Max int
}

type counterMachine struct{}

func (counterMachine) Apply(state *counter, evt replay.Decoded, ext limit) (*counter, error) {
	switch data := evt.Data.(type) {
	case opened:
		if state != nil {
			return nil, replay.Reject(state, evt)
		}
		return &counter{Total: data.Start}, nil
	case added:
		if state == nil || state.Closed {
			return nil, replay.Reject(state, evt)
		}
		next := *state
		next.Total += data.N
		if ext.Max > 0 && next.Total > ext.Max {
			return nil, replay.Invariant("total %d exceeds %d", next.Total, ext.Max)
		}
		return &next, nil
	case closed:
		if state == nil || state.Closed {
			return nil, replay.Reject(state, evt)
		}
		next := *state
		next.Closed = true
		return &next, nil
	}
	return nil, replay.Reject(state, evt)
}

func TestFold_AppliesInOrder(t *testing.T) {
	s := replaytest.NewStream().
		Add("OPENED", opened{Start: 1}).
		Add("ADDED", added{N: 2}).
		Add("ADDED", added{N: 3})

	state, err := replay.Fold[*counter, limit](s.AggregateID, s.Events, counterMachine{}, limit{})

	require.NoError(t, err)
	require.Equal(t, &counter{Total: 6}, state)
}

func TestFold_IsDeterministic(t *testing.T) {
	s := replaytest.NewStream().
		Add("OPENED", opened{}).
		Add("ADDED", added{N: 5}).
		Add("CLOSED", closed{})

	first, err := replay.Fold[*counter, limit](s.AggregateID, s.Events, counterMachine{}, limit{})
	require.NoError(t, err)
	second, err := replay.Fold[*counter, limit](s.AggregateID, s.Events, counterMachine{}, limit{})
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.NotSame(t, first, second)
}

func TestFold_UnknownTransition(t *testing.T) {
	s := replaytest.NewStream().
		Add("OPENED", opened{}).
		Add("CLOSED", closed{}).
		Add("ADDED", added{N: 1})

	state, err := replay.Fold[*counter, limit](s.AggregateID, s.Events, counterMachine{}, limit{})

	require.Nil(t, state)
	require.ErrorIs(t, err, replay.ErrUnknownTransition)
	var terr *replay.TransitionError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, 3, terr.Version)
	require.Equal(t, "Closed", terr.State)
	require.Equal(t, hendelse.Type("ADDED"), terr.Type)
}

func TestFold_InvariantUsesExternalContext(t *testing.T) {
	s := replaytest.NewStream().
		Add("OPENED", opened{}).
		Add("ADDED", added{N: 11})

	_, err := replay.Fold[*counter, limit](s.AggregateID, s.Events, counterMachine{}, limit{Max: 10})
	require.ErrorIs(t, err, replay.ErrInvariant)

	_, err = replay.Fold[*counter, limit](s.AggregateID, s.Events, counterMachine{}, limit{Max: 20})
	require.NoError(t, err)
}

func TestFold_CorruptChain(t *testing.T) {
	s := replaytest.NewStream().
		Add("OPENED", opened{}).
		Add("ADDED", added{N: 1}).
		Add("ADDED", added{N: 1})
	s.Events = append(s.Events[:1], s.Events[2])

	_, err := replay.Fold[*counter, limit](s.AggregateID, s.Events, counterMachine{}, limit{})
	require.ErrorIs(t, err, hendelse.ErrCorruptChain)
}

func TestRegistry_Dispatch(t *testing.T) {
	registry := replay.NewRegistry()
	registry.Register("OPENED", replay.Bind[*counter, limit](counterMachine{}))

	s := replaytest.NewStream().Add("OPENED", opened{Start: 4})

	state, err := registry.Reconstruct(s.AggregateID, s.Events, nil)
	require.NoError(t, err)
	require.Equal(t, &counter{Total: 4}, state)

	_, err = registry.Reconstruct(s.AggregateID, s.Events, "wrong")
	require.ErrorIs(t, err, replay.ErrExternalContext)

	_, err = registry.Reconstruct(uuid.New(), nil, nil)
	require.ErrorIs(t, err, hendelse.ErrNotFound)

	other := replaytest.NewStream().Add("ADDED", added{N: 1})
	_, err = registry.Reconstruct(other.AggregateID, other.Events, nil)
	require.ErrorIs(t, err, replay.ErrNoMachine)

	require.Panics(t, func() { registry.Register("OPENED", replay.Bind[*counter, limit](counterMachine{})) })
}

func TestDecode(t *testing.T) {
	registry := hendelse.NewRegistry()
	hendelse.RegisterJSON[opened](registry, "OPENED")
	s := replaytest.NewStream().Add("OPENED", opened{Start: 7})

	decoded, err := replay.Decode(registry, s.Raw())
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Equal(t, opened{Start: 7}, decoded[0].Data)

	s.Add("ADDED", added{})
	_, err = replay.Decode(registry, s.Raw())
	require.ErrorIs(t, err, hendelse.ErrUnknownType)
}
