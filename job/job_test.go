package job

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spoolderrors "github.com/coreprint/spoold/errors"
)

func validJob() *Job {
	return &Job{
		Name:          "job1",
		OriginUser:    "alice",
		OriginPrinter: "p1",
		DestPrinter:   "lobby",
		Postscript:    "%%Page: 1\n",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Job)
		wantErr error
	}{
		{name: "valid job", mutate: func(j *Job) {}, wantErr: nil},
		{
			name:    "empty name",
			mutate:  func(j *Job) { j.Name = "" },
			wantErr: spoolderrors.ErrEmptyJobName,
		},
		{
			name:    "name with path separator",
			mutate:  func(j *Job) { j.Name = "../etc/passwd" },
			wantErr: spoolderrors.ErrInvalidJobName,
		},
		{
			name:    "dot name",
			mutate:  func(j *Job) { j.Name = ".." },
			wantErr: spoolderrors.ErrInvalidJobName,
		},
		{
			name:    "hidden name",
			mutate:  func(j *Job) { j.Name = ".report.tmp" },
			wantErr: spoolderrors.ErrInvalidJobName,
		},
		{
			name:    "missing user",
			mutate:  func(j *Job) { j.OriginUser = "" },
			wantErr: spoolderrors.ErrMissingField,
		},
		{
			name:    "missing destination",
			mutate:  func(j *Job) { j.DestPrinter = "" },
			wantErr: spoolderrors.ErrMissingField,
		},
		{
			name:    "missing payload",
			mutate:  func(j *Job) { j.Postscript = "" },
			wantErr: spoolderrors.ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := validJob()
			tt.mutate(j)

			err := j.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeSubmission(t *testing.T) {
	t.Parallel()

	wire, err := EncodeSubmission(validJob())
	require.NoError(t, err)

	j, err := DecodeSubmission(wire)
	require.NoError(t, err)
	assert.Equal(t, validJob(), j)
	assert.Equal(t, "job1", j.ID())
}

func TestDecodeSubmission_WhitespaceTolerated(t *testing.T) {
	t.Parallel()

	wire, err := EncodeSubmission(validJob())
	require.NoError(t, err)

	// Line-oriented clients wrap and terminate the base64 text.
	wrapped := string(wire[:10]) + "\n" + string(wire[10:]) + "\n"

	j, err := DecodeSubmission([]byte(wrapped))
	require.NoError(t, err)
	assert.Equal(t, "job1", j.Name)
}

func TestDecodeSubmission_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		data  []byte
		stage string
	}{
		{
			name:  "invalid base64",
			data:  []byte("not;;;base64!"),
			stage: "base64",
		},
		{
			name:  "valid base64 invalid json",
			data:  []byte(base64.StdEncoding.EncodeToString([]byte("{broken"))),
			stage: "json",
		},
		{
			name:  "missing fields",
			data:  []byte(base64.StdEncoding.EncodeToString([]byte(`{"name":"j"}`))),
			stage: "validate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSubmission(tt.data)
			require.Error(t, err)

			var decodeErr *spoolderrors.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.stage, decodeErr.Stage)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := validJob().Encode()
	require.NoError(t, err)

	j, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, validJob(), j)
}

func TestAckFrames(t *testing.T) {
	t.Parallel()

	accepted := Accepted("job1")
	assert.Equal(t, "accepted", accepted.Status)
	assert.Equal(t, "job1", accepted.Name)
	assert.Empty(t, accepted.Error)

	rejected := Rejected(spoolderrors.ErrDuplicateJob)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Contains(t, rejected.Error, "already spooled")
}
