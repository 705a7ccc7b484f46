package core_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masomo/lms/core"
	"github.com/masomo/lms/testutil"
)

func TestTrapClosedDB(t *testing.T) {
	db := testutil.OpenDB(t)
	require.NoError(t, db.Close())

	var n int
	closedErr := db.Get(&n, "SELECT 1")
	require.Error(t, closedErr)

	txErr := core.RunInTx(context.Background(), db, func(core.DBExecutor) error {
		t.Fatal("fn must not run on a closed database")
		return nil
	})

	other := errors.New("lol")
	tests := []struct {
		name         string
		err          error
		wantShutdown bool
	}{
		{name: "nil"},
		{name: "closed", err: core.TrapClosedDB(closedErr), wantShutdown: true},
		{name: "closed (wrapped)", err: errors.Wrap(core.TrapClosedDB(errors.Wrap(closedErr, "querying")), "getting"), wantShutdown: true},
		{name: "begin transaction", err: txErr, wantShutdown: true},
		{name: "other", err: core.TrapClosedDB(other)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantShutdown, core.IsShutdown(tt.err))
		})
	}
	assert.Nil(t, core.TrapClosedDB(nil))
	assert.Equal(t, other, core.TrapClosedDB(other))
}
