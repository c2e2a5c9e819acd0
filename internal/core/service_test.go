package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SubmitValidatesBeforeAllocatingID(t *testing.T) {
	f := newFixture(NewDevice("dev-1", "b1", "http://unused", ""))

	tests := map[string]struct {
		sub   Submission
		field string
	}{
		"missing board":   {Submission{Payload: "nop"}, "TargetBoard"},
		"missing payload": {Submission{TargetBoard: "b1"}, "Payload"},
		"long board":      {Submission{TargetBoard: strings.Repeat("x", 129), Payload: "nop"}, "TargetBoard"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Submit(tc.sub)
			var serr *SubmissionError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tc.field, serr.Field)
		})
	}

	id, err := f.svc.Submit(Submission{TargetBoard: "b1", Payload: "nop"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id, "rejected submissions must not consume ids")
}

func TestService_UnknownBoardStaysQueued(t *testing.T) {
	f := newFixture(NewDevice("dev-1", "b1", "http://unused", ""))
	id := f.submit(t, "nobody-has-this", "nop")

	report, err := f.svc.StatusOf(id)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, report.Status)
	assert.Equal(t, 1, report.Position)

	require.NoError(t, f.svc.Cancel(id))
	_, err = f.svc.StatusOf(id)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestService_CancelUnknown(t *testing.T) {
	f := newFixture(NewDevice("dev-1", "b1", "http://unused", ""))
	var nf *NotFoundError
	require.ErrorAs(t, f.svc.Cancel(7), &nf)
	assert.Equal(t, "pending", nf.Where)

	_, err := f.svc.PositionOf(7)
	assert.ErrorAs(t, err, &nf)
}

func TestService_OverviewAndBoards(t *testing.T) {
	f := newFixture(
		NewDevice("dev-2", "b2", "http://unused", ""),
		NewDevice("dev-1", "b1", "http://unused", ""),
		NewDevice("dev-3", "b1", "http://unused", ""),
	)
	f.submit(t, "b1", "one")
	f.submit(t, "b2", "two")

	assert.Equal(t, []string{"b1", "b2"}, f.svc.ListBoards())

	ov := f.svc.Overview()
	assert.Len(t, ov.Pending, 2)
	assert.Empty(t, ov.Completed)
	assert.Equal(t, 0, ov.Inflight)
	require.Len(t, ov.Devices, 3)
	assert.Equal(t, "dev-1", ov.Devices[0].Name)
}
