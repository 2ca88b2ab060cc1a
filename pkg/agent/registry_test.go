package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	id     string
	status Status
}

func (f *fakeAgent) Metadata() Metadata {
	return Metadata{ID: f.id, Capabilities: []string{"security"}, Tags: []string{"code"}}
}

func (f *fakeAgent) Status() Status { return f.status }

func (f *fakeAgent) Process(ctx context.Context, msg Message, shared SharedState) (Message, error) {
	f.status = StatusIdle
	return Message{Kind: MessageText, Sender: f.id}, nil
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	meta := Metadata{ID: "security"}
	factory := func() Agent { return &fakeAgent{id: "security"} }

	require.NoError(t, r.Register(meta, factory))
	assert.Error(t, r.Register(meta, factory))
}

func TestGetReturnsFreshInstanceWhenEnabled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Metadata{ID: "security"}, func() Agent { return &fakeAgent{id: "security"} }))

	a1, ok := r.Get("security")
	require.True(t, ok)
	a2, ok := r.Get("security")
	require.True(t, ok)
	assert.NotSame(t, a1, a2)
}

func TestDisabledAgentIsNotReturned(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Metadata{ID: "security"}, func() Agent { return &fakeAgent{id: "security"} }))
	require.NoError(t, r.Disable("security"))

	_, ok := r.Get("security")
	assert.False(t, ok)

	require.NoError(t, r.Enable("security"))
	_, ok = r.Get("security")
	assert.True(t, ok)
}

func TestFindByCapabilityAndTag(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Metadata{ID: "security", Capabilities: []string{"scan"}, Tags: []string{"code"}}, func() Agent { return &fakeAgent{id: "security"} }))
	require.NoError(t, r.Register(Metadata{ID: "compliance", Capabilities: []string{"audit"}, Tags: []string{"code"}}, func() Agent { return &fakeAgent{id: "compliance"} }))

	byCap := r.FindByCapability("scan")
	require.Len(t, byCap, 1)
	assert.Equal(t, "security", byCap[0].ID)

	byTag := r.FindByTag("code")
	assert.Len(t, byTag, 2)
}

func TestListFiltersEnabled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Metadata{ID: "a"}, func() Agent { return &fakeAgent{id: "a"} }))
	require.NoError(t, r.Register(Metadata{ID: "b"}, func() Agent { return &fakeAgent{id: "b"} }))
	require.NoError(t, r.Disable("b"))

	assert.Len(t, r.List(false), 2)
	assert.Len(t, r.List(true), 1)
}
