package promise

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllFulfillsWithValuesInInputOrder(t *testing.T) {
	p1, r1, _ := New(nil)
	p2, r2, _ := New(nil)
	p3, r3, _ := New(nil)

	agg := All([]*Promise{p1, p2, p3})
	r2(2)
	r1(1)
	r3(3)

	v, err := agg.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, v)
}

func TestAllRejectsImmediatelyOnFirstRejectionEvenWithOthersPending(t *testing.T) {
	p1, _, _ := New(nil) // never settles
	p2, _, reject2 := New(nil)
	boom := errors.New("boom")

	agg := All([]*Promise{p1, p2})
	reject2(boom)

	_, err := agg.Wait(50 * time.Millisecond)
	assert.Equal(t, boom, err)
}

func TestAllOnEmptyInputFulfillsWithEmptySlice(t *testing.T) {
	v, err := All(nil).Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)
}

func TestAllSettledNeverRejectsAndPreservesInputLength(t *testing.T) {
	p1 := Resolve("a")
	boom := errors.New("boom")
	p2 := Reject(boom)
	p3 := Resolve("c")

	v, err := AllSettled([]*Promise{p1, p2, p3}).Wait(time.Second)
	require.NoError(t, err)
	outcomes := v.([]SettledOutcome)
	require.Len(t, outcomes, 3)
	assert.Equal(t, SettledOutcome{Status: "fulfilled", Value: "a"}, outcomes[0])
	assert.Equal(t, "rejected", outcomes[1].Status)
	assert.Equal(t, boom, outcomes[1].Reason)
	assert.Equal(t, SettledOutcome{Status: "fulfilled", Value: "c"}, outcomes[2])
}

func TestAllSettledOnEmptyInputFulfillsWithEmptySlice(t *testing.T) {
	v, err := AllSettled(nil).Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []SettledOutcome{}, v)
}

func TestAnyFulfillsWithFirstFulfilledValue(t *testing.T) {
	p1, _, reject1 := New(nil)
	p2, resolve2, _ := New(nil)

	agg := Any([]*Promise{p1, p2})
	resolve2("second-wins")
	reject1(errors.New("too late"))

	v, err := agg.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second-wins", v)
}

func TestAnyRejectsWithAggregateOnlyWhenAllReject(t *testing.T) {
	boom1 := errors.New("one")
	boom2 := errors.New("two")
	agg := Any([]*Promise{Reject(boom1), Reject(boom2)})

	_, err := agg.Wait(time.Second)
	var aggErr *AggregateError
	require.ErrorAs(t, err, &aggErr)
	assert.ElementsMatch(t, []error{boom1, boom2}, aggErr.Errors)
}

func TestAnyOnEmptyInputRejectsWithAggregateError(t *testing.T) {
	_, err := Any(nil).Wait(time.Second)
	var aggErr *AggregateError
	require.ErrorAs(t, err, &aggErr)
}

func TestRaceSettlesWithFirstSettlementIgnoringLater(t *testing.T) {
	p1, resolve1, _ := New(nil)
	p2, resolve2, _ := New(nil)

	agg := Race([]*Promise{p1, p2})
	resolve1("first")
	resolve2("second")

	v, err := agg.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestRaceRejectsWithFirstRejection(t *testing.T) {
	boom := errors.New("boom")
	p1, _, reject1 := New(nil)
	p2, _, _ := New(nil)

	agg := Race([]*Promise{p1, p2})
	reject1(boom)

	_, err := agg.Wait(time.Second)
	assert.Equal(t, boom, err)
}

func TestRaceOnEmptyInputStaysPending(t *testing.T) {
	agg := Race(nil)
	_, err := agg.Wait(20 * time.Millisecond)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
}
