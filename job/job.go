// Package job defines the print job document and its wire codecs.
//
// A job travels the pipeline by identifier only; the document itself lives
// in the spool store from the moment ingestion accepts it until dispatch
// retires it. Submissions arrive as a base64-encoded JSON object streamed
// over a TCP connection.
package job

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coreprint/spoold/errors"
)

// Job is a single print request: origin/destination metadata plus the
// page-description payload. Field names match the submission wire format.
type Job struct {
	Name          string `json:"name"`
	OriginUser    string `json:"originUser"`
	OriginPrinter string `json:"originPrinter"`
	DestPrinter   string `json:"destPrinter"`
	Postscript    string `json:"postscript"`
}

// ID returns the job identifier, which doubles as the spool storage key.
func (j *Job) ID() string {
	return j.Name
}

// Validate checks that all required fields are present and that the name is
// usable as a spool key.
func (j *Job) Validate() error {
	if j.Name == "" {
		return errors.ErrEmptyJobName
	}
	if strings.ContainsAny(j.Name, "/\\") || strings.HasPrefix(j.Name, ".") {
		return errors.ErrInvalidJobName
	}

	for field, value := range map[string]string{
		"originUser":    j.OriginUser,
		"originPrinter": j.OriginPrinter,
		"destPrinter":   j.DestPrinter,
		"postscript":    j.Postscript,
	} {
		if value == "" {
			return fmt.Errorf("%w: %s", errors.ErrMissingField, field)
		}
	}

	return nil
}

// Encode serializes the job to its spool entry form.
func (j *Job) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, errors.NewDecodeError("json", err)
	}
	return data, nil
}

// Decode parses a spool entry document.
func Decode(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, errors.NewDecodeError("json", err)
	}
	return &j, nil
}

// DecodeSubmission parses the accumulated bytes of one submission
// connection: base64 transport encoding wrapping the JSON document.
// Whitespace inside the base64 text is tolerated; trailing newlines from
// line-oriented clients are common.
func DecodeSubmission(data []byte) (*Job, error) {
	compact := bytes.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, data)

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(compact)))
	n, err := base64.StdEncoding.Decode(raw, compact)
	if err != nil {
		return nil, errors.NewDecodeError("base64", err)
	}

	j, err := Decode(raw[:n])
	if err != nil {
		return nil, err
	}

	if err := j.Validate(); err != nil {
		return nil, errors.NewDecodeError("validate", err)
	}

	return j, nil
}

// EncodeSubmission produces the wire form a client streams to the
// ingestion service. Used by the example client and tests.
func EncodeSubmission(j *Job) ([]byte, error) {
	data, err := j.Encode()
	if err != nil {
		return nil, err
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)
	return encoded, nil
}

// Ack is the acknowledgment frame written back to the submitter after the
// write side of the connection closes.
type Ack struct {
	Status string `json:"status"` // "accepted" or "rejected"
	Name   string `json:"name,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Accepted builds an acceptance frame for a spooled job.
func Accepted(name string) Ack {
	return Ack{Status: "accepted", Name: name}
}

// Rejected builds a rejection frame carrying the failure reason.
func Rejected(err error) Ack {
	return Ack{Status: "rejected", Error: err.Error()}
}
