// Package submission implements the per-message submission state machine:
// parsing one input message, building an item+bitstream plan, executing
// it against the repository, and producing a result message.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/MITLibraries/dspace-submission-service/internal/errors"
	"github.com/MITLibraries/dspace-submission-service/internal/message"
	"github.com/MITLibraries/dspace-submission-service/internal/metrics"
	"github.com/MITLibraries/dspace-submission-service/internal/objectstore"
	"github.com/MITLibraries/dspace-submission-service/internal/queue"
	"github.com/MITLibraries/dspace-submission-service/internal/repository"
)

// Submission is constructed from one input message and discarded after
// publishing one result message.
type Submission struct {
	Destination      string
	CollectionHandle string
	MetadataLocation string
	Files            []message.FileDescriptor

	ResultAttributes map[string]queue.Attribute
	ResultQueue      string

	// earlyResult is set by FromMessage when the body did not conform to
	// the expected shape. It is not an exception: Submit returns it
	// immediately without attempting to build a plan.
	earlyResult *message.ResultBody
}

// FromMessage parses and validates msg. A halt-silent *errors.Classified
// is returned when the message cannot be processed at all (invalid
// OutputQueue or a missing required attribute). A nonconforming body is
// NOT an error: the returned Submission already carries its result
// message.
func FromMessage(msg queue.Message, inputQueueName string, allowedQueues []string) (*Submission, error) {
	outputQueueAttr, ok := msg.Attributes["OutputQueue"]
	if !ok || outputQueueAttr.StringValue == "" || !contains(allowedQueues, outputQueueAttr.StringValue) {
		resultQueue := ""
		if ok {
			resultQueue = outputQueueAttr.StringValue
		}
		return nil, &apperrors.InvalidResultQueueError{
			MessageID:     msg.ID,
			ResultQueue:   resultQueue,
			InputQueue:    inputQueueName,
			AllowedQueues: allowedQueues,
		}
	}

	packageID, ok := msg.Attributes["PackageID"]
	if !ok || packageID.StringValue == "" {
		return nil, &apperrors.MissingAttributeError{MessageID: msg.ID, AttributeName: "PackageID", InputQueue: inputQueueName}
	}
	submissionSource, ok := msg.Attributes["SubmissionSource"]
	if !ok || submissionSource.StringValue == "" {
		return nil, &apperrors.MissingAttributeError{MessageID: msg.ID, AttributeName: "SubmissionSource", InputQueue: inputQueueName}
	}

	resultAttributes := map[string]queue.Attribute{
		"PackageID":        packageID,
		"SubmissionSource": submissionSource,
	}

	body, ok := message.ParseSubmissionBody([]byte(msg.Body))
	if !ok {
		return &Submission{
			ResultAttributes: resultAttributes,
			ResultQueue:      outputQueueAttr.StringValue,
			earlyResult: &message.ResultBody{
				ResultType: "error",
				ErrorInfo:  "message body did not conform to the expected submission format",
			},
		}, nil
	}

	return &Submission{
		Destination:      body.SubmissionSystem,
		CollectionHandle: body.CollectionHandle,
		MetadataLocation: body.MetadataLocation,
		Files:            body.Files,
		ResultAttributes: resultAttributes,
		ResultQueue:      outputQueueAttr.StringValue,
	}, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Submit executes the plan against repo and reader. dspaceURL and
// dspaceTimeout describe the repository instance repo was built against,
// and are only used to annotate a DSpaceTimeoutError should one occur.
// Submit returns a non-nil *message.ResultBody for success and
// report-continue outcomes (the caller publishes it and deletes the
// input). A non-nil error means a halt class was hit: the caller must
// NOT publish anything and must NOT delete the input message.
func (s *Submission) Submit(ctx context.Context, repo repository.Client, reader objectstore.Reader, dspaceURL string, dspaceTimeout float64) (*message.ResultBody, error) {
	if s.earlyResult != nil {
		return s.earlyResult, nil
	}

	entries, err := s.buildMetadataEntries(ctx, reader)
	if err != nil {
		createErr := &apperrors.ItemCreateError{MetadataLocation: s.MetadataLocation, Err: err}
		return errorResult(createErr), nil
	}

	if err := s.validateFiles(); err != nil {
		addErr := &apperrors.BitstreamAddError{Err: err}
		return errorResult(addErr), nil
	}

	collection, err := repo.GetCollectionByHandle(s.CollectionHandle)
	if err != nil {
		if timeoutErr, ok := s.asTimeout(err, dspaceURL, dspaceTimeout); ok {
			return nil, timeoutErr
		}
		postErr := &apperrors.ItemPostError{CollectionHandle: s.CollectionHandle, Err: err}
		return errorResult(postErr), nil
	}

	created, err := repo.CreateItem(collection.UUID, repository.ItemPayload{Metadata: entries})
	if err != nil {
		if timeoutErr, ok := s.asTimeout(err, dspaceURL, dspaceTimeout); ok {
			return nil, timeoutErr
		}
		postErr := &apperrors.ItemPostError{CollectionHandle: s.CollectionHandle, Err: err}
		return errorResult(postErr), nil
	}

	postedBitstreams, err := s.postBitstreams(ctx, repo, reader, created.UUID, created.Handle, dspaceURL, dspaceTimeout)
	if err != nil {
		return s.handleBitstreamFailure(repo, created, postedBitstreams, err)
	}

	return successResult(created, postedBitstreams), nil
}

type postedBitstream struct {
	name     string
	uuid     string
	checksum string
}

func (s *Submission) buildMetadataEntries(ctx context.Context, reader objectstore.Reader) ([]repository.MetadataEntry, error) {
	stream, err := reader.Open(ctx, s.MetadataLocation)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var doc message.MetadataDocument
	if err := json.NewDecoder(stream).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse metadata document '%s': %w", s.MetadataLocation, err)
	}
	if doc.Metadata == nil {
		return nil, fmt.Errorf("metadata document '%s' is missing required key 'metadata'", s.MetadataLocation)
	}

	entries := make([]repository.MetadataEntry, 0, len(doc.Metadata))
	for _, e := range doc.Metadata {
		entries = append(entries, repository.MetadataEntry{Key: e.Key, Value: e.Value, Language: e.Language})
	}
	return entries, nil
}

func (s *Submission) validateFiles() error {
	for _, f := range s.Files {
		if f.BitstreamName == "" || f.FileLocation == "" {
			return fmt.Errorf("file descriptor missing BitstreamName or FileLocation")
		}
	}
	return nil
}

// postBitstreams posts every file in order. AttachBitstream is addressed
// by itemUUID per the repository contract; itemHandle is carried only for
// the human-readable error messages. It returns the bitstreams
// successfully posted so far even when it returns an error, so the
// caller can compensate exactly what was created.
func (s *Submission) postBitstreams(ctx context.Context, repo repository.Client, reader objectstore.Reader, itemUUID, itemHandle, dspaceURL string, dspaceTimeout float64) ([]postedBitstream, error) {
	posted := make([]postedBitstream, 0, len(s.Files))

	for _, f := range s.Files {
		stream, err := reader.Open(ctx, f.FileLocation)
		if err != nil {
			return posted, &apperrors.BitstreamOpenError{FileLocation: f.FileLocation, ItemHandle: itemHandle, Err: err}
		}

		created, err := repo.AttachBitstream(itemUUID, f.BitstreamName, f.BitstreamDescription, stream)
		stream.Close()
		if err != nil {
			if timeoutErr, ok := s.asTimeout(err, dspaceURL, dspaceTimeout); ok {
				return posted, timeoutErr
			}
			return posted, &apperrors.BitstreamPostError{BitstreamName: f.BitstreamName, ItemHandle: itemHandle, Err: err}
		}

		posted = append(posted, postedBitstream{name: f.BitstreamName, uuid: created.UUID, checksum: created.Checksum})
	}

	return posted, nil
}

// handleBitstreamFailure runs compensation (when the failure kind
// requires it) and produces the corresponding result or halt error.
func (s *Submission) handleBitstreamFailure(repo repository.Client, created repository.CreatedItem, posted []postedBitstream, failure error) (*message.ResultBody, error) {
	if _, ok := failure.(*apperrors.DSpaceTimeoutError); ok {
		return nil, failure
	}

	compensatable, ok := failure.(apperrors.Compensatable)
	if ok && compensatable.Compensate() {
		if err := s.compensate(repo, created, posted); err != nil {
			metrics.RecordCompensation("failed")
			return nil, fmt.Errorf("compensation failed after %w: %w", failure, err)
		}
		metrics.RecordCompensation("succeeded")
	}

	return errorResult(failure), nil
}

// compensate deletes every bitstream already posted, in the order they
// were attached, and then deletes the item. This ordering is strict.
func (s *Submission) compensate(repo repository.Client, created repository.CreatedItem, posted []postedBitstream) error {
	for _, b := range posted {
		if err := repo.DeleteBitstream(b.uuid); err != nil {
			return fmt.Errorf("failed to delete bitstream '%s' during compensation: %w", b.uuid, err)
		}
	}
	if err := repo.DeleteItem(created.UUID); err != nil {
		return fmt.Errorf("failed to delete item '%s' during compensation: %w", created.UUID, err)
	}
	return nil
}

// asTimeout converts a *repository.TimeoutError into the fully
// annotated *errors.DSpaceTimeoutError carried up to the operator.
func (s *Submission) asTimeout(err error, dspaceURL string, dspaceTimeout float64) (*apperrors.DSpaceTimeoutError, bool) {
	repoTimeout, ok := err.(*repository.TimeoutError)
	if !ok {
		return nil, false
	}
	return &apperrors.DSpaceTimeoutError{
		DSpaceURL:        dspaceURL,
		DSpaceTimeout:    dspaceTimeout,
		PackageID:        s.attributeValue("PackageID"),
		SubmissionSource: s.attributeValue("SubmissionSource"),
		Err:              repoTimeout,
	}, true
}

func (s *Submission) attributeValue(name string) string {
	if attr, ok := s.ResultAttributes[name]; ok {
		return attr.StringValue
	}
	return ""
}

func errorResult(err error) *message.ResultBody {
	body := "N/A"
	if he, ok := unwrapHTTPError(err); ok {
		body = he.Body
	}

	return &message.ResultBody{
		ResultType:     "error",
		ErrorTimestamp: time.Now().UTC().Format("2006-01-02 15:04:05"),
		ErrorInfo:      err.Error(),
		DSpaceResponse: body,
	}
}

func unwrapHTTPError(err error) (*repository.HTTPError, bool) {
	switch e := err.(type) {
	case *apperrors.ItemPostError:
		if he, ok := e.Err.(*repository.HTTPError); ok {
			return he, true
		}
	case *apperrors.BitstreamPostError:
		if he, ok := e.Err.(*repository.HTTPError); ok {
			return he, true
		}
	}
	return nil, false
}

func successResult(created repository.CreatedItem, posted []postedBitstream) *message.ResultBody {
	bitstreams := make([]message.BitstreamResult, 0, len(posted))
	for _, b := range posted {
		bitstreams = append(bitstreams, message.BitstreamResult{
			BitstreamName:     b.name,
			BitstreamUUID:     b.uuid,
			BitstreamChecksum: b.checksum,
		})
	}

	return &message.ResultBody{
		ResultType:   "success",
		ItemHandle:   created.Handle,
		LastModified: created.LastModified,
		Bitstreams:   bitstreams,
	}
}
