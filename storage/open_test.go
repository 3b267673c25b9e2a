package storage_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/airdrop-session/storage"
	"github.com/jrsteele09/airdrop-session/storage/memstore"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	openers := map[string]storage.Opener{
		"memory": func() (storage.Store, error) { return memstore.New(), nil },
		"broken": func() (storage.Store, error) { return nil, errors.New("boom") },
	}

	s, err := storage.Open("memory", openers)
	require.NoError(t, err)
	require.NotNil(t, s)

	_, err = storage.Open("broken", openers)
	require.ErrorContains(t, err, "boom")

	_, err = storage.Open("floppy", openers)
	require.ErrorContains(t, err, "unknown storage driver")
}
