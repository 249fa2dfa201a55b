// Package message defines the wire shapes of submission and result
// message bodies, and the sample-data loaders used by the CLI's
// load-sample-input-data and load-sample-output-data commands.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/MITLibraries/dspace-submission-service/internal/queue"
)

// FileDescriptor is one entry of a submission body's Files list.
type FileDescriptor struct {
	BitstreamName        string `json:"BitstreamName"`
	FileLocation          string `json:"FileLocation"`
	BitstreamDescription string `json:"BitstreamDescription,omitempty"`
}

// SubmissionBody is the structured body of a submission message.
type SubmissionBody struct {
	SubmissionSystem string           `json:"SubmissionSystem"`
	CollectionHandle string           `json:"CollectionHandle"`
	MetadataLocation string           `json:"MetadataLocation"`
	Files            []FileDescriptor `json:"Files"`
}

// ParseSubmissionBody decodes and validates raw as a SubmissionBody. A
// JSON parse failure or missing required key is reported via ok=false,
// NOT an error — the caller (Submission.FromMessage) turns this into a
// plain-string error result, not an exception.
func ParseSubmissionBody(raw []byte) (body SubmissionBody, ok bool) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return SubmissionBody{}, false
	}

	for _, key := range []string{"SubmissionSystem", "CollectionHandle", "MetadataLocation", "Files"} {
		if _, present := generic[key]; !present {
			return SubmissionBody{}, false
		}
	}

	if err := json.Unmarshal(raw, &body); err != nil {
		return SubmissionBody{}, false
	}
	return body, true
}

// MetadataDocument is the shape of the JSON document addressed by
// MetadataLocation.
type MetadataDocument struct {
	Metadata []MetadataDocumentEntry `json:"metadata"`
}

// MetadataDocumentEntry is one metadata key/value pair, optionally
// qualified by language, consumed verbatim by the repository.
type MetadataDocumentEntry struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Language string `json:"language,omitempty"`
}

// BitstreamResult describes one bitstream in a success result message.
type BitstreamResult struct {
	BitstreamName     string `json:"BitstreamName"`
	BitstreamUUID     string `json:"BitstreamUUID"`
	BitstreamChecksum string `json:"BitstreamChecksum"`
}

// ResultBody is the structured body of a result message. Only the
// fields relevant to ResultType are populated.
type ResultBody struct {
	ResultType string `json:"ResultType"`

	// success fields
	ItemHandle   string            `json:"ItemHandle,omitempty"`
	LastModified string            `json:"lastModified,omitempty"`
	Bitstreams   []BitstreamResult `json:"Bitstreams,omitempty"`

	// error fields
	ErrorTimestamp      string   `json:"ErrorTimestamp,omitempty"`
	ErrorInfo           string   `json:"ErrorInfo,omitempty"`
	DSpaceResponse      string   `json:"DSpaceResponse,omitempty"`
	ExceptionTraceback  []string `json:"ExceptionTraceback,omitempty"`
}

// Envelope pairs a queue-ready attribute set with a serialized body, as
// produced by the sample data generators below and consumed by
// queue.Adapter.Send.
type Envelope struct {
	Attributes map[string]queue.Attribute
	Body       string
}

// sampleFixture is the shape of a load-sample-input-data /
// load-sample-output-data fixture file: an object keyed by arbitrary
// sample ids.
type sampleFixture map[string]json.RawMessage

type submissionFixtureEntry struct {
	PackageID        string `json:"package id"`
	Source           string `json:"source"`
	TargetSystem     string `json:"target system"`
	CollectionHandle string `json:"collection handle"`
	MetadataLocation string `json:"metadata location"`
	Files            []struct {
		Name        string `json:"name"`
		Location    string `json:"location"`
		Description string `json:"description"`
	} `json:"files"`
}

// GenerateSubmissionMessagesFromFile reads a fixture file of submission
// entries and returns one Envelope per entry, addressed to outputQueue as
// the result destination.
func GenerateSubmissionMessagesFromFile(raw []byte, outputQueue string) ([]Envelope, error) {
	var fixture sampleFixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse sample input fixture: %w", err)
	}

	envelopes := make([]Envelope, 0, len(fixture))
	for _, raw := range fixture {
		var entry submissionFixtureEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to parse sample input entry: %w", err)
		}

		body := SubmissionBody{
			SubmissionSystem: entry.TargetSystem,
			CollectionHandle: entry.CollectionHandle,
			MetadataLocation: entry.MetadataLocation,
		}
		for _, f := range entry.Files {
			body.Files = append(body.Files, FileDescriptor{
				BitstreamName:         f.Name,
				FileLocation:          f.Location,
				BitstreamDescription:  f.Description,
			})
		}

		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sample submission body: %w", err)
		}

		envelopes = append(envelopes, Envelope{
			Attributes: map[string]queue.Attribute{
				"PackageID":        {DataType: "String", StringValue: entry.PackageID},
				"SubmissionSource": {DataType: "String", StringValue: entry.Source},
				"OutputQueue":      {DataType: "String", StringValue: outputQueue},
			},
			Body: string(bodyJSON),
		})
	}
	return envelopes, nil
}

type resultFixtureEntry struct {
	PackageID string `json:"package id"`
	Source    string `json:"source"`
	Result    string `json:"result"`
	Handle    string `json:"handle"`
	Modified  string `json:"modified"`
	Files     []struct {
		Name     string `json:"bitstream name"`
		UUID     string `json:"uuid"`
		Checksum string `json:"checksum"`
	} `json:"files"`
}

// GenerateResultMessagesFromFile reads a fixture file of result entries
// and returns one Envelope per entry.
func GenerateResultMessagesFromFile(raw []byte) ([]Envelope, error) {
	var fixture sampleFixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse sample output fixture: %w", err)
	}

	envelopes := make([]Envelope, 0, len(fixture))
	for _, raw := range fixture {
		var entry resultFixtureEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to parse sample output entry: %w", err)
		}

		body := ResultBody{
			ResultType:   entry.Result,
			ItemHandle:   entry.Handle,
			LastModified: entry.Modified,
		}
		for _, f := range entry.Files {
			body.Bitstreams = append(body.Bitstreams, BitstreamResult{
				BitstreamName:     f.Name,
				BitstreamUUID:     f.UUID,
				BitstreamChecksum: f.Checksum,
			})
		}

		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sample result body: %w", err)
		}

		envelopes = append(envelopes, Envelope{
			Attributes: map[string]queue.Attribute{
				"PackageID":        {DataType: "String", StringValue: entry.PackageID},
				"SubmissionSource": {DataType: "String", StringValue: entry.Source},
			},
			Body: string(bodyJSON),
		})
	}
	return envelopes, nil
}
