package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedSecretProviderDeterministic(t *testing.T) {
	p := DerivedSecretProvider{Master: []byte("master")}

	a1, ok := p.SecretFor(context.Background(), "agent-1")
	require.True(t, ok)
	a2, ok := p.SecretFor(context.Background(), "agent-1")
	require.True(t, ok)
	assert.Equal(t, a1, a2)

	b, ok := p.SecretFor(context.Background(), "agent-2")
	require.True(t, ok)
	assert.NotEqual(t, a1, b)

	// The secret handed to the agent at registration is the same one the
	// verifier derives.
	assert.Equal(t, DeriveAgentSecret([]byte("master"), "agent-1"), string(a1))
}

type fakeSecretStore struct {
	secrets map[string]string
	err     error
}

func (f *fakeSecretStore) AgentSecret(_ context.Context, agentID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.secrets[agentID]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(s), nil
}

func TestStoredSecretProvider(t *testing.T) {
	store := &fakeSecretStore{secrets: map[string]string{"agent-1": "s3cret"}}
	p := StoredSecretProvider{Store: store}

	got, ok := p.SecretFor(context.Background(), "agent-1")
	require.True(t, ok)
	assert.Equal(t, []byte("s3cret"), got)

	_, ok = p.SecretFor(context.Background(), "agent-2")
	assert.False(t, ok)

	store.err = errors.New("db down")
	_, ok = p.SecretFor(context.Background(), "agent-1")
	assert.False(t, ok)
}

func TestGenerateAgentSecret(t *testing.T) {
	a, err := GenerateAgentSecret()
	require.NoError(t, err)
	b, err := GenerateAgentSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
