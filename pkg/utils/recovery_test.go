package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observedContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zap.ErrorLevel)
	return logger.WithLogger(context.Background(), zap.New(core)), logs
}

func TestSafeGo(t *testing.T) {
	done := make(chan struct{})
	SafeGo(func() { close(done) }, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("function did not execute in time")
	}

	recovered := make(chan interface{}, 1)
	SafeGo(func() {
		panic("test panic")
	}, func(r interface{}, stack []byte) {
		recovered <- r
	})
	select {
	case r := <-recovered:
		assert.Equal(t, "test panic", r)
	case <-time.After(time.Second):
		t.Fatal("panic was not recovered")
	}
}

func TestRecoverWithLog(t *testing.T) {
	ctx, logs := observedContext()

	func() {
		defer RecoverWithLog(ctx, "process_webhook")
		panic("boom")
	}()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "process_webhook", logs.All()[0].ContextMap()["operation"])
}

func TestWrapWithContextRecovery(t *testing.T) {
	ctx, logs := observedContext()

	ok := WrapWithContextRecovery(func(ctx context.Context) error { return nil })
	assert.NoError(t, ok(ctx))

	failing := WrapWithContextRecovery(func(ctx context.Context) error { return errors.New("test error") })
	assert.EqualError(t, failing(ctx), "test error")

	panicking := WrapWithContextRecovery(func(ctx context.Context) error { panic("test panic") })
	assert.EqualError(t, panicking(ctx), "panic recovered: test panic")
	assert.Equal(t, 1, logs.Len())
}
