package submission_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/MITLibraries/dspace-submission-service/internal/errors"
	"github.com/MITLibraries/dspace-submission-service/internal/objectstore"
	"github.com/MITLibraries/dspace-submission-service/internal/queue"
	"github.com/MITLibraries/dspace-submission-service/internal/repository"
	"github.com/MITLibraries/dspace-submission-service/internal/submission"
)

const allowedQueue = "empty_result_queue"

func writeFixture(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func inputMessage(t *testing.T, body string) queue.Message {
	t.Helper()
	return queue.Message{
		ID:   "msg-1",
		Body: body,
		Attributes: map[string]queue.Attribute{
			"PackageID":        {DataType: "String", StringValue: "etdtest01"},
			"SubmissionSource": {DataType: "String", StringValue: "etd"},
			"OutputQueue":      {DataType: "String", StringValue: allowedQueue},
		},
	}
}

func TestSubmitHappyPath(t *testing.T) {
	dir := t.TempDir()
	metadataPath := writeFixture(t, dir, "metadata.json", `{"metadata":[{"key":"dc.title","value":"A Title"}]}`)
	filePath := writeFixture(t, dir, "test-file-01.pdf", "pdf-bytes")

	body, err := json.Marshal(map[string]any{
		"SubmissionSystem": "DSpace@MIT",
		"CollectionHandle": "0000/collection01",
		"MetadataLocation": metadataPath,
		"Files": []map[string]string{
			{"BitstreamName": "test-file-01.pdf", "FileLocation": filePath, "BitstreamDescription": "A test bitstream"},
		},
	})
	require.NoError(t, err)

	sub, err := submission.FromMessage(inputMessage(t, string(body)), "input_queue", []string{allowedQueue})
	require.NoError(t, err)

	fake := repository.NewFake()
	fake.Collections["0000/collection01"] = repository.Collection{UUID: "coll-1"}
	reader := objectstore.NewFSReader("us-east-1")

	result, err := sub.Submit(context.Background(), fake, reader, "https://dspace.example.edu/rest/", 120.0)
	require.NoError(t, err)

	assert.Equal(t, "success", result.ResultType)
	require.Len(t, result.Bitstreams, 1)
	assert.Equal(t, "test-file-01.pdf", result.Bitstreams[0].BitstreamName)
}

func TestSubmitItemCreateError(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"SubmissionSystem": "DSpace@MIT",
		"CollectionHandle": "0000/collection01",
		"MetadataLocation": "tests/fixtures/does-not-exist.json",
		"Files":            []map[string]string{},
	})
	require.NoError(t, err)

	sub, err := submission.FromMessage(inputMessage(t, string(body)), "input_queue", []string{allowedQueue})
	require.NoError(t, err)

	fake := repository.NewFake()
	reader := objectstore.NewFSReader("us-east-1")

	result, err := sub.Submit(context.Background(), fake, reader, "https://dspace.example.edu/rest/", 120.0)
	require.NoError(t, err)

	assert.Equal(t, "error", result.ResultType)
	assert.Contains(t, result.ErrorInfo, "creating item metadata entries from file")
	assert.Contains(t, result.ErrorInfo, "does-not-exist.json")
}

func TestSubmitItemPostError(t *testing.T) {
	dir := t.TempDir()
	metadataPath := writeFixture(t, dir, "metadata.json", `{"metadata":[]}`)

	body, err := json.Marshal(map[string]any{
		"SubmissionSystem": "DSpace@MIT",
		"CollectionHandle": "0000/not-a-collection",
		"MetadataLocation": metadataPath,
		"Files":            []map[string]string{},
	})
	require.NoError(t, err)

	sub, err := submission.FromMessage(inputMessage(t, string(body)), "input_queue", []string{allowedQueue})
	require.NoError(t, err)

	fake := repository.NewFake()
	reader := objectstore.NewFSReader("us-east-1")

	result, err := sub.Submit(context.Background(), fake, reader, "https://dspace.example.edu/rest/", 120.0)
	require.NoError(t, err)

	assert.Equal(t, "error", result.ResultType)
	assert.Contains(t, result.ErrorInfo, "posting item to DSpace collection '0000/not-a-collection'")
	assert.Empty(t, fake.Items)
}

func TestSubmitBitstreamOpenErrorCompensates(t *testing.T) {
	dir := t.TempDir()
	metadataPath := writeFixture(t, dir, "metadata.json", `{"metadata":[]}`)

	body, err := json.Marshal(map[string]any{
		"SubmissionSystem": "DSpace@MIT",
		"CollectionHandle": "0000/collection01",
		"MetadataLocation": metadataPath,
		"Files": []map[string]string{
			{"BitstreamName": "missing.pdf", "FileLocation": "tests/fixtures/nothing-here"},
		},
	})
	require.NoError(t, err)

	sub, err := submission.FromMessage(inputMessage(t, string(body)), "input_queue", []string{allowedQueue})
	require.NoError(t, err)

	fake := repository.NewFake()
	fake.Collections["0000/collection01"] = repository.Collection{UUID: "coll-1"}
	reader := objectstore.NewFSReader("us-east-1")

	result, err := sub.Submit(context.Background(), fake, reader, "https://dspace.example.edu/rest/", 120.0)
	require.NoError(t, err)

	assert.Equal(t, "error", result.ResultType)
	assert.Contains(t, result.ErrorInfo, "nothing-here")
	assert.Contains(t, result.ErrorInfo, "will be deleted")
	assert.Len(t, fake.DeletedItems, 1)
}

func TestSubmitRepositoryTimeoutHalts(t *testing.T) {
	dir := t.TempDir()
	metadataPath := writeFixture(t, dir, "metadata.json", `{"metadata":[]}`)

	body, err := json.Marshal(map[string]any{
		"SubmissionSystem": "DSpace@MIT",
		"CollectionHandle": "0000/collection03",
		"MetadataLocation": metadataPath,
		"Files":            []map[string]string{},
	})
	require.NoError(t, err)

	sub, err := submission.FromMessage(inputMessage(t, string(body)), "input_queue", []string{allowedQueue})
	require.NoError(t, err)

	fake := repository.NewFake()
	fake.Collections["0000/collection03"] = repository.Collection{UUID: "coll-3"}
	fake.TimeoutCollections["0000/collection03"] = true
	reader := objectstore.NewFSReader("us-east-1")

	result, err := sub.Submit(context.Background(), fake, reader, "https://dspace.example.edu/rest/", 120.0)

	var timeoutErr *apperrors.DSpaceTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Nil(t, result)
}

func TestFromMessageInvalidOutputQueue(t *testing.T) {
	msg := inputMessage(t, "{}")
	msg.Attributes["OutputQueue"] = queue.Attribute{DataType: "String", StringValue: "not-allowed"}

	_, err := submission.FromMessage(msg, "input_queue", []string{allowedQueue})

	var invalidQueue *apperrors.InvalidResultQueueError
	require.ErrorAs(t, err, &invalidQueue)
}

func TestFromMessageNonconformingBodyIsReportContinue(t *testing.T) {
	sub, err := submission.FromMessage(inputMessage(t, `{"not": "a submission"}`), "input_queue", []string{allowedQueue})
	require.NoError(t, err)

	result, err := sub.Submit(context.Background(), repository.NewFake(), objectstore.NewFSReader("us-east-1"), "https://dspace.example.edu/rest/", 120.0)
	require.NoError(t, err)
	assert.Equal(t, "error", result.ResultType)
}
