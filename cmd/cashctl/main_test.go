package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayRange(t *testing.T) {
	eat := time.FixedZone("EAT", 3*3600)

	from, to, err := dayRange("2026-03-01", "2026-03-31", eat)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, eat), *from)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, eat), *to)

	from, to, err = dayRange("", "", eat)
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Nil(t, to)

	_, _, err = dayRange("01/03/2026", "", eat)
	assert.Error(t, err)
}

func TestHashPasswordRejectsShortPasswords(t *testing.T) {
	cmd := hashPasswordCmd()
	cmd.SetArgs([]string{"short"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.Error(t, cmd.Execute())
}
