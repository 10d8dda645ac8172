package input

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rollcall/internal/dependencies/mocks"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/testutil"
)

type CollectorSuite struct {
	suite.Suite
	clock     *mocks.MockClock
	collector *Collector
	ctx       context.Context
}

func TestCollectorSuite(t *testing.T) {
	suite.Run(t, new(CollectorSuite))
}

func (s *CollectorSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 3, 9, 21, 0, 0, 0, time.UTC))
	s.collector = New(s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

type collected struct {
	lines []string
	err   error
}

func (s *CollectorSuite) collectAsync(ctx context.Context, timeout time.Duration) <-chan collected {
	out := make(chan collected, 1)
	go func() {
		lines, err := s.collector.CollectLines(ctx, timeout)
		out <- collected{lines: lines, err: err}
	}()
	return out
}

func (s *CollectorSuite) TestSubmitDeliversLines() {
	result := s.collectAsync(s.ctx, time.Minute)
	s.collector.WaitForWaiters(1)

	s.Equal(1, s.collector.Submit("alice\r\nbob\n"))

	r := <-result
	s.Require().NoError(r.err)
	s.Equal([]string{"alice", "bob", ""}, r.lines)
	s.Equal(0, s.collector.Waiting())
}

func (s *CollectorSuite) TestSubmitWithoutWaiterIsDropped() {
	s.Equal(0, s.collector.Submit("alice"))

	result := s.collectAsync(s.ctx, time.Minute)
	s.collector.WaitForWaiters(1)
	s.clock.WaitForTimers(1)
	s.clock.Advance(time.Minute)

	r := <-result
	s.ErrorIs(r.err, model.ErrTimeout)
}

func (s *CollectorSuite) TestTimeout() {
	result := s.collectAsync(s.ctx, 30*time.Second)
	s.clock.WaitForTimers(1)

	s.clock.Advance(29 * time.Second)
	select {
	case <-result:
		s.Fail("returned before the deadline")
	default:
	}

	s.clock.Advance(time.Second)
	r := <-result
	s.ErrorIs(r.err, model.ErrTimeout)
	s.Equal(0, s.collector.Waiting())
}

func (s *CollectorSuite) TestBroadcastToAllWaiters() {
	first := s.collectAsync(s.ctx, time.Minute)
	second := s.collectAsync(s.ctx, time.Minute)
	s.collector.WaitForWaiters(2)

	s.Equal(2, s.collector.Submit("CONFIRMAR"))

	r1, r2 := <-first, <-second
	s.Equal([]string{"CONFIRMAR"}, r1.lines)
	s.Equal([]string{"CONFIRMAR"}, r2.lines)
}

func (s *CollectorSuite) TestEachWaiterReceivesOneMessage() {
	result := s.collectAsync(s.ctx, time.Minute)
	s.collector.WaitForWaiters(1)

	s.collector.Submit("first")
	s.Equal(0, s.collector.Submit("second"))

	r := <-result
	s.Equal([]string{"first"}, r.lines)
}

func (s *CollectorSuite) TestContextCancellation() {
	ctx, cancel := context.WithCancel(s.ctx)
	result := s.collectAsync(ctx, time.Minute)
	s.collector.WaitForWaiters(1)

	cancel()

	r := <-result
	s.ErrorIs(r.err, context.Canceled)
	s.Equal(0, s.collector.Waiting())
}
