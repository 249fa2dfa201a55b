package repository_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MITLibraries/dspace-submission-service/internal/repository"
)

func TestFakeCreateItemAndAttachBitstream(t *testing.T) {
	fake := repository.NewFake()
	fake.Collections["0000/1"] = repository.Collection{UUID: "coll-1"}

	collection, err := fake.GetCollectionByHandle("0000/1")
	require.NoError(t, err)
	assert.Equal(t, "coll-1", collection.UUID)

	item, err := fake.CreateItem(collection.UUID, repository.ItemPayload{})
	require.NoError(t, err)
	assert.NotEmpty(t, item.UUID)
	assert.NotEmpty(t, item.Handle)

	bitstream, err := fake.AttachBitstream(item.UUID, "file.pdf", "", strings.NewReader("file contents"))
	require.NoError(t, err)
	assert.NotEmpty(t, bitstream.UUID)
}

func TestFakeUnknownCollection(t *testing.T) {
	fake := repository.NewFake()
	_, err := fake.GetCollectionByHandle("0000/missing")

	var httpErr *repository.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 404, httpErr.StatusCode)
}

func TestFakeTimeoutCollection(t *testing.T) {
	fake := repository.NewFake()
	fake.Collections["0000/1"] = repository.Collection{UUID: "coll-1"}
	fake.TimeoutCollections["0000/1"] = true

	_, err := fake.CreateItem("coll-1", repository.ItemPayload{})

	var timeoutErr *repository.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestFakeCompensationOrdering(t *testing.T) {
	fake := repository.NewFake()
	fake.Collections["0000/1"] = repository.Collection{UUID: "coll-1"}

	item, err := fake.CreateItem("coll-1", repository.ItemPayload{})
	require.NoError(t, err)

	b1, err := fake.AttachBitstream(item.UUID, "a.pdf", "", strings.NewReader("a"))
	require.NoError(t, err)
	b2, err := fake.AttachBitstream(item.UUID, "b.pdf", "", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, fake.DeleteBitstream(b1.UUID))
	require.NoError(t, fake.DeleteBitstream(b2.UUID))
	require.NoError(t, fake.DeleteItem(item.UUID))

	assert.Equal(t, []string{b1.UUID, b2.UUID}, fake.DeletedBitstreams)
	assert.Equal(t, []string{item.UUID}, fake.DeletedItems)
}

func TestFakeFailBitstreamName(t *testing.T) {
	fake := repository.NewFake()
	fake.Collections["0000/1"] = repository.Collection{UUID: "coll-1"}
	item, err := fake.CreateItem("coll-1", repository.ItemPayload{})
	require.NoError(t, err)

	boom := &repository.HTTPError{StatusCode: 500, Body: "server error"}
	fake.FailBitstreamNames["bad.pdf"] = boom

	_, err = fake.AttachBitstream(item.UUID, "bad.pdf", "", strings.NewReader("x"))
	assert.ErrorIs(t, err, boom)
}
