package distlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisLockExclusive(t *testing.T) {
	client, _ := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(client, "feed-import", time.Minute)
	b := NewRedisLock(client, "feed-import", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// b must not be able to release a's lock
	require.NoError(t, b.Release(ctx))
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExtend(t *testing.T) {
	client, mr := newRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "sweep", time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Extend(ctx, time.Minute))
	assert.Greater(t, mr.TTL("lock:sweep"), 30*time.Second)

	mr.FastForward(2 * time.Minute)
	assert.Error(t, l.Extend(ctx, time.Minute))
}

func TestRunExclusive(t *testing.T) {
	client, _ := newRedis(t)
	ctx := context.Background()

	holder := NewRedisLock(client, "job", time.Minute)
	ok, _ := holder.Acquire(ctx)
	require.True(t, ok)

	ran, err := RunExclusive(ctx, NewRedisLock(client, "job", time.Minute), func(context.Context) error {
		t.Fatal("should not run while lock is held")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)

	require.NoError(t, holder.Release(ctx))

	jobErr := errors.New("boom")
	ran, err = RunExclusive(ctx, NewRedisLock(client, "job", time.Minute), func(context.Context) error {
		return jobErr
	})
	assert.True(t, ran)
	assert.ErrorIs(t, err, jobErr)

	// lock released after the job even when it failed
	ok, _ = NewRedisLock(client, "job", time.Minute).Acquire(ctx)
	assert.True(t, ok)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "invoice-sweep")

	mock.ExpectQuery("SELECT pg_try_advisory_lock").
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("SELECT pg_advisory_unlock").
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLockPrefersRedis(t *testing.T) {
	client, _ := newRedis(t)
	_, isRedis := NewLock(client, nil, "k", time.Minute).(*RedisLock)
	assert.True(t, isRedis)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, isPG := NewLock(nil, db, "k", time.Minute).(*PGAdvisoryLock)
	assert.True(t, isPG)
}
