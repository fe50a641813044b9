package redis

import (
	"encoding/json"
	"fmt"

	"github.com/voteboard/voteboard/internal/domain"
)

// EncodeVoteEvent serializes a vote event into the queue wire format:
// a JSON object with exactly voter_id and vote keys.
func EncodeVoteEvent(event domain.VoteEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal vote event: %w", err)
	}
	return data, nil
}

// DecodeVoteEvent parses a queue payload. Any failure (bad JSON, missing
// voter_id, unrecognized vote token) yields a MalformedEventError; such
// payloads are discarded by the worker, never retried.
func DecodeVoteEvent(payload []byte) (domain.VoteEvent, error) {
	var raw struct {
		VoterID string `json:"voter_id"`
		Vote    string `json:"vote"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.VoteEvent{}, &domain.MalformedEventError{Payload: payload, Cause: err}
	}

	if raw.VoterID == "" {
		return domain.VoteEvent{}, &domain.MalformedEventError{
			Payload: payload,
			Cause:   fmt.Errorf("missing voter_id"),
		}
	}

	choice, err := domain.ParseChoice(raw.Vote)
	if err != nil {
		return domain.VoteEvent{}, &domain.MalformedEventError{Payload: payload, Cause: err}
	}

	return domain.VoteEvent{VoterID: raw.VoterID, Choice: choice}, nil
}
