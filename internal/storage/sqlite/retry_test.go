package sqlite

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyAttemptBudget(t *testing.T) {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return errors.New("database is locked")
	}, retryPolicy())
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicyStopsOnPermanent(t *testing.T) {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return backoff.Permanent(fmt.Errorf("constraint failed"))
	}, retryPolicy())
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsBusyError(t *testing.T) {
	assert.False(t, isBusyError(nil))
	assert.False(t, isBusyError(errors.New("UNIQUE constraint failed")))
	assert.True(t, isBusyError(errors.New("database is locked")))
	assert.True(t, isBusyError(fmt.Errorf("sqlite3: SQLITE_BUSY: locked")))
}
