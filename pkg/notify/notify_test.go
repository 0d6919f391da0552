package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
	err  error
	got  []Alert
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) PostAlert(ctx context.Context, alert Alert) error {
	p.got = append(p.got, alert)
	return p.err
}

func TestRegistry_BroadcastsToAllProviders(t *testing.T) {
	a := &fakeProvider{name: "slack"}
	b := &fakeProvider{name: "mattermost"}
	r := NewRegistry()
	r.Register(a)
	r.Register(b)

	errs := r.Broadcast(context.Background(), Alert{Title: "stale data"})
	require.Empty(t, errs)
	require.Len(t, a.got, 1)
	require.Len(t, b.got, 1)
}

func TestRegistry_CollectsProviderErrorsWithoutFailingFast(t *testing.T) {
	a := &fakeProvider{name: "slack", err: errors.New("rate limited")}
	b := &fakeProvider{name: "mattermost"}
	r := NewRegistry()
	r.Register(a)
	r.Register(b)

	errs := r.Broadcast(context.Background(), Alert{Title: "stale data"})
	require.Len(t, errs, 1)
	require.Len(t, b.got, 1, "the other provider must still be attempted")
}

func TestRegistry_GetUnregisteredProvider(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("slack")
	require.False(t, ok)
}

func TestSlackProvider_NoopWithoutWebhookURL(t *testing.T) {
	p := NewSlackProvider("")
	err := p.PostAlert(context.Background(), Alert{Title: "x"})
	require.NoError(t, err)
}
