// Package errors defines the closed taxonomy of failures that can occur
// while processing a single submission, and the compensation/continuation
// policy attached to each one.
package errors

import "fmt"

// Policy describes how the message loop should react to a given error.
type Policy int

const (
	// PolicyReportContinue means: produce an error result message, publish
	// it, delete the input message, and keep processing the batch.
	PolicyReportContinue Policy = iota
	// PolicyHaltReport means: no result is produced; the error propagates
	// out of the loop and the input message is left in the queue.
	PolicyHaltReport
	// PolicyHaltSilent means: the input could not be trusted enough to
	// publish anything at all; the error propagates and nothing is deleted.
	PolicyHaltSilent
)

func (p Policy) String() string {
	switch p {
	case PolicyReportContinue:
		return "report-continue"
	case PolicyHaltReport:
		return "halt-report"
	case PolicyHaltSilent:
		return "halt-silent"
	default:
		return "unknown"
	}
}

// Classified is implemented by every error in the taxonomy below.
type Classified interface {
	error
	Policy() Policy
}

// ItemCreateError is raised when the metadata document named by a
// submission is missing a required key or cannot be parsed.
type ItemCreateError struct {
	MetadataLocation string
	Err              error
}

func (e *ItemCreateError) Error() string {
	return fmt.Sprintf(
		"error occurred while creating item metadata entries from file '%s': %v",
		e.MetadataLocation, e.Err,
	)
}

func (e *ItemCreateError) Unwrap() error { return e.Err }
func (e *ItemCreateError) Policy() Policy { return PolicyReportContinue }

// BitstreamAddError is raised when a file descriptor in the submission
// body is missing a required key.
type BitstreamAddError struct {
	Err error
}

func (e *BitstreamAddError) Error() string {
	return fmt.Sprintf(
		"error occurred while parsing bitstream information from files listed in submission message: %v",
		e.Err,
	)
}

func (e *BitstreamAddError) Unwrap() error { return e.Err }
func (e *BitstreamAddError) Policy() Policy { return PolicyReportContinue }

// ItemPostError is raised when the repository rejects the item POST with
// a non-timeout HTTP error.
type ItemPostError struct {
	CollectionHandle string
	RemoteBody       string
	Err              error
}

func (e *ItemPostError) Error() string {
	return fmt.Sprintf(
		"error occurred while posting item to DSpace collection '%s': %v",
		e.CollectionHandle, e.Err,
	)
}

func (e *ItemPostError) Unwrap() error { return e.Err }
func (e *ItemPostError) Policy() Policy { return PolicyReportContinue }

// BitstreamOpenError is raised when a bitstream's source URI cannot be
// opened. The item (and any bitstreams already posted to it) must be
// compensated.
type BitstreamOpenError struct {
	FileLocation string
	ItemHandle   string
	Err          error
}

func (e *BitstreamOpenError) Error() string {
	return fmt.Sprintf(
		"error occurred while opening file '%s' for bitstream. Item '%s' and any bitstreams already posted to it will be deleted: %v",
		e.FileLocation, e.ItemHandle, e.Err,
	)
}

func (e *BitstreamOpenError) Unwrap() error { return e.Err }
func (e *BitstreamOpenError) Policy() Policy { return PolicyReportContinue }
func (e *BitstreamOpenError) Compensate() bool { return true }

// BitstreamPostError is raised when the repository rejects a bitstream
// POST. The item (and any bitstreams already posted to it) must be
// compensated.
type BitstreamPostError struct {
	BitstreamName string
	ItemHandle    string
	RemoteBody    string
	Err           error
}

func (e *BitstreamPostError) Error() string {
	return fmt.Sprintf(
		"error occurred while posting bitstream '%s' to item in DSpace. Item '%s' and any bitstreams already posted to it will be deleted: %v",
		e.BitstreamName, e.ItemHandle, e.Err,
	)
}

func (e *BitstreamPostError) Unwrap() error { return e.Err }
func (e *BitstreamPostError) Policy() Policy { return PolicyReportContinue }
func (e *BitstreamPostError) Compensate() bool { return true }

// Compensatable is implemented by the two bitstream errors that require
// rollback of already-posted repository state before the result is
// produced.
type Compensatable interface {
	Compensate() bool
}

// DSpaceTimeoutError is raised when any repository call exceeds the
// configured timeout. The submission in flight likely left partial state
// behind; the worker halts for operator attention.
type DSpaceTimeoutError struct {
	DSpaceURL        string
	DSpaceTimeout    float64
	PackageID        string
	SubmissionSource string
	Err              error
}

func (e *DSpaceTimeoutError) Error() string {
	return fmt.Sprintf(
		"DSpace server at '%s' took more than %.1f seconds to respond. Aborting "+
			"processing until this can be investigated.\nNOTE: The submission in "+
			"process when this occurred likely has partially published data in "+
			"DSpace. The package id of the submission was '%s', from source '%s'",
		e.DSpaceURL, e.DSpaceTimeout, e.PackageID, e.SubmissionSource,
	)
}

func (e *DSpaceTimeoutError) Unwrap() error { return e.Err }
func (e *DSpaceTimeoutError) Policy() Policy { return PolicyHaltReport }

// InvalidResultQueueError is raised when a submission message names an
// OutputQueue that is not on the configured allow-list.
type InvalidResultQueueError struct {
	MessageID        string
	ResultQueue      string
	InputQueue       string
	AllowedQueues    []string
}

func (e *InvalidResultQueueError) Error() string {
	return fmt.Sprintf(
		"aborting processing due to a non-recoverable error: error occurred while "+
			"processing message '%s' from input queue '%s'. Message provided invalid "+
			"result queue name '%s'. Valid result queue names are: %v.",
		e.MessageID, e.InputQueue, e.ResultQueue, e.AllowedQueues,
	)
}

func (e *InvalidResultQueueError) Policy() Policy { return PolicyHaltSilent }

// MissingAttributeError is raised when a required attribute is absent
// from a submission message.
type MissingAttributeError struct {
	MessageID     string
	AttributeName string
	InputQueue    string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf(
		"aborting processing due to a non-recoverable error: error occurred while "+
			"processing message '%s' from input queue '%s'. Message was missing "+
			"required attribute '%s'.",
		e.MessageID, e.InputQueue, e.AttributeName,
	)
}

func (e *MissingAttributeError) Policy() Policy { return PolicyHaltSilent }

// ResultPublishError is raised when the MD5 digest returned by the queue
// service for a sent result message does not match the digest computed
// locally. The input message must NOT be deleted.
type ResultPublishError struct {
	ResultQueue     string
	SubmitMessageID string
	Attributes      map[string]string
}

func (e *ResultPublishError) Error() string {
	return fmt.Sprintf(
		"message was not successfully sent to result queue '%s', aborting processing "+
			"until this can be investigated. NOTE: the submit message is likely still "+
			"in the submission queue and may need to be manually deleted before "+
			"processing resumes. Submit message ID: %s. Result message attributes: %v",
		e.ResultQueue, e.SubmitMessageID, e.Attributes,
	)
}

func (e *ResultPublishError) Policy() Policy { return PolicyHaltSilent }
