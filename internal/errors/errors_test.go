package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyString(t *testing.T) {
	tests := []struct {
		policy Policy
		want   string
	}{
		{PolicyReportContinue, "report-continue"},
		{PolicyHaltReport, "halt-report"},
		{PolicyHaltSilent, "halt-silent"},
		{Policy(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.policy.String())
	}
}

func TestBitstreamErrorsAreCompensatable(t *testing.T) {
	var openErr error = &BitstreamOpenError{FileLocation: "s3://bucket/key", ItemHandle: "0000/1"}
	var postErr error = &BitstreamPostError{BitstreamName: "file.pdf", ItemHandle: "0000/1"}

	compensatable, ok := openErr.(Compensatable)
	assert.True(t, ok)
	assert.True(t, compensatable.Compensate())

	compensatable, ok = postErr.(Compensatable)
	assert.True(t, ok)
	assert.True(t, compensatable.Compensate())
}

func TestNonBitstreamErrorsAreNotCompensatable(t *testing.T) {
	var err error = &ItemPostError{CollectionHandle: "0000/1"}
	_, ok := err.(Compensatable)
	assert.False(t, ok)
}

func TestPolicyAssignments(t *testing.T) {
	assert.Equal(t, PolicyReportContinue, (&ItemCreateError{}).Policy())
	assert.Equal(t, PolicyReportContinue, (&BitstreamAddError{}).Policy())
	assert.Equal(t, PolicyReportContinue, (&ItemPostError{}).Policy())
	assert.Equal(t, PolicyReportContinue, (&BitstreamOpenError{}).Policy())
	assert.Equal(t, PolicyReportContinue, (&BitstreamPostError{}).Policy())
	assert.Equal(t, PolicyHaltReport, (&DSpaceTimeoutError{}).Policy())
	assert.Equal(t, PolicyHaltSilent, (&InvalidResultQueueError{}).Policy())
	assert.Equal(t, PolicyHaltSilent, (&MissingAttributeError{}).Policy())
	assert.Equal(t, PolicyHaltSilent, (&ResultPublishError{}).Policy())
}

func TestDSpaceTimeoutErrorMessage(t *testing.T) {
	err := &DSpaceTimeoutError{
		DSpaceURL:        "https://dspace.example.edu/rest/",
		DSpaceTimeout:    120.0,
		PackageID:        "pkg-1",
		SubmissionSource: "etd",
	}
	msg := err.Error()
	assert.Contains(t, msg, "dspace.example.edu")
	assert.Contains(t, msg, "120.0")
	assert.Contains(t, msg, "pkg-1")
	assert.Contains(t, msg, "etd")
}

func TestErrorsUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ItemCreateError{MetadataLocation: "s3://bucket/meta.json", Err: inner}
	assert.ErrorIs(t, err, inner)
}
