package app

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/navid-fn/margincore/configs"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestRunStopsAllTasksOnFailure(t *testing.T) {
	var stopped atomic.Int32
	boom := errors.New("boom")

	waiter := func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Add(1)
		return nil
	}
	failing := func(context.Context) error { return boom }

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), quietLogger(), waiter, waiter, failing) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
	assert.EqualValues(t, 2, stopped.Load())
}

func TestRunReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, quietLogger(), func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	assert.NoError(t, err)
}

func TestOpenJournalDisabledWithoutBroker(t *testing.T) {
	assert.Nil(t, OpenJournal(configs.KafkaConfig{}, quietLogger()))
}

func TestStartProfilerDisabled(t *testing.T) {
	stop := StartProfiler("worker", "", quietLogger())
	assert.NotPanics(t, stop)
}
