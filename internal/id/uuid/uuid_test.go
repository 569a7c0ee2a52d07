package uuid

import (
	"errors"
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := NewUUIDGenerator()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
	require.Less(t, id1, id2)
}

func TestFunc(t *testing.T) {
	t.Parallel()

	id, err := Func(func() (string, error) { return "run-1", nil }).NewID()
	require.NoError(t, err)
	require.Equal(t, "run-1", id)

	_, err = Func(func() (string, error) { return "", errors.New("boom") }).NewID()
	require.EqualError(t, err, "boom")
}
