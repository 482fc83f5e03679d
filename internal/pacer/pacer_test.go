package pacer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultDecay(t *testing.T) {
	c := NewDefault(MinSleep(1*time.Microsecond), MaxSleep(1*time.Second))
	for _, tc := range []struct {
		in            State
		decayConstant uint
		want          time.Duration
	}{
		{State{SleepTime: 8 * time.Millisecond}, 1, 4 * time.Millisecond},
		{State{SleepTime: 1 * time.Millisecond}, 0, 1 * time.Microsecond},
		{State{SleepTime: 1 * time.Millisecond}, 2, (3 * time.Millisecond) / 4},
		{State{SleepTime: 1 * time.Millisecond}, 3, (7 * time.Millisecond) / 8},
	} {
		c.decayConstant = tc.decayConstant
		require.Equalf(t, tc.want, c.Calculate(tc.in), "test: %+v", tc)
	}
}

func TestDefaultAttack(t *testing.T) {
	c := NewDefault(MinSleep(1*time.Microsecond), MaxSleep(1*time.Second))
	for _, tc := range []struct {
		in             State
		attackConstant uint
		want           time.Duration
	}{
		{State{SleepTime: 1 * time.Millisecond, ConsecutiveRetries: 1}, 1, 2 * time.Millisecond},
		{State{SleepTime: 1 * time.Millisecond, ConsecutiveRetries: 1}, 0, 1 * time.Second},
		{State{SleepTime: 1 * time.Millisecond, ConsecutiveRetries: 1}, 2, (4 * time.Millisecond) / 3},
		{State{SleepTime: 1 * time.Millisecond, ConsecutiveRetries: 1}, 3, (8 * time.Millisecond) / 7},
	} {
		c.attackConstant = tc.attackConstant
		require.Equalf(t, tc.want, c.Calculate(tc.in), "test: %+v", tc)
	}
}

var errFoo = errors.New("foo")

func TestCallFixed(t *testing.T) {
	p := New(RetriesOption(10), CalculatorOption(NewDefault(MinSleep(1*time.Millisecond), MaxSleep(2*time.Millisecond))))

	called := 0
	err := p.Call(func() (bool, error) {
		called++
		return false, errFoo
	})
	require.Equal(t, 1, called)
	require.Equal(t, errFoo, err)
}

func TestCallRetriesUntilBudgetExhausted(t *testing.T) {
	p := New(RetriesOption(5), CalculatorOption(NewDefault(MinSleep(1*time.Millisecond), MaxSleep(2*time.Millisecond))))

	called := 0
	err := p.Call(func() (bool, error) {
		called++
		return true, errFoo
	})
	require.Equal(t, 5, called)
	require.Equal(t, errFoo, err)
}

func TestCallStopsOnFirstSuccess(t *testing.T) {
	p := New(RetriesOption(5), CalculatorOption(NewDefault(MinSleep(1*time.Millisecond), MaxSleep(2*time.Millisecond))))

	called := 0
	err := p.Call(func() (bool, error) {
		called++
		if called < 3 {
			return true, errFoo
		}
		return false, nil
	})
	require.Equal(t, 3, called)
	require.NoError(t, err)
}
