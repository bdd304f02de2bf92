package broker_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	model "github.com/zhouzirui/codetutor/backend/internal/model/broker"
	"github.com/zhouzirui/codetutor/backend/internal/model/credential"
	"github.com/zhouzirui/codetutor/backend/internal/service/broker"
)

const personalKey = "AIzaSyPersonal0123456789abcdefghijk"

func newBroker(t *testing.T) (*broker.Service, *credential.MemoryStore) {
	t.Helper()
	store := credential.NewMemoryStore()
	return broker.NewService(store, nil, zaptest.NewLogger(t)), store
}

func TestIssueTokenRequiresStoredCredential(t *testing.T) {
	svc, store := newBroker(t)
	ctx := context.Background()

	_, err := svc.IssueToken(ctx, "B21DCCN001")
	require.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, store.SaveCredential("B21DCCN001", "An", personalKey))

	token, err := svc.IssueToken(ctx, "B21DCCN001")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := svc.ResolveCredential(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, personalKey, got)
}

func TestIssueTokenRejectsEmptyIdentity(t *testing.T) {
	svc, _ := newBroker(t)
	_, err := svc.IssueToken(context.Background(), " ")
	require.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestResolveDoesNotConsumeToken(t *testing.T) {
	svc, store := newBroker(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCredential("B21DCCN001", "An", personalKey))

	token, err := svc.IssueToken(ctx, "B21DCCN001")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.ResolveCredential(ctx, token)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, svc.ActiveTokens())
}

func TestRevokeTokenIsIdempotent(t *testing.T) {
	svc, store := newBroker(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCredential("B21DCCN001", "An", personalKey))

	token, err := svc.IssueToken(ctx, "B21DCCN001")
	require.NoError(t, err)

	svc.RevokeToken(ctx, token)
	svc.RevokeToken(ctx, token)
	svc.RevokeToken(ctx, "never-issued")

	_, err = svc.ResolveCredential(ctx, token)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	assert.Zero(t, svc.ActiveTokens())
}

func TestResolveUnknownToken(t *testing.T) {
	svc, _ := newBroker(t)
	_, err := svc.ResolveCredential(context.Background(), "")
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestTokensAreUnique(t *testing.T) {
	svc, store := newBroker(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCredential("B21DCCN001", "An", personalKey))

	const n = 64
	var (
		mu     sync.Mutex
		tokens = make(map[string]struct{}, n)
		g      errgroup.Group
	)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			token, err := svc.IssueToken(ctx, "B21DCCN001")
			if err != nil {
				return err
			}
			mu.Lock()
			tokens[token] = struct{}{}
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, tokens, n)
	assert.Equal(t, n, svc.ActiveTokens())
}

func TestConcurrentRevokeOfSameToken(t *testing.T) {
	svc, store := newBroker(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCredential("B21DCCN001", "An", personalKey))
	token, err := svc.IssueToken(ctx, "B21DCCN001")
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			svc.RevokeToken(ctx, token)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	_, err = svc.ResolveCredential(ctx, token)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}
