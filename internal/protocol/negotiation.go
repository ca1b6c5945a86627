package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
)

const (
	NegotiationDescription = "description"
	NegotiationCandidate   = "candidate"

	DescriptionOffer  = "offer"
	DescriptionAnswer = "answer"
)

var ErrBadNegotiation = errors.New("malformed negotiation body")

// NegotiationIn is what the relay decodes from a sender: the target id and the
// untouched body. The relay never looks inside Message.
type NegotiationIn struct {
	Type    string              `json:"type"`
	To      domain.ConnectionID `json:"to"`
	Message json.RawMessage     `json:"message"`
}

// NegotiationOut is the relayed frame as the target receives it.
type NegotiationOut struct {
	Type    string              `json:"type"`
	From    domain.ConnectionID `json:"from"`
	Message json.RawMessage     `json:"message"`
}

// Description carries one side of an offer/answer exchange.
type Description struct {
	Kind string `json:"kind"` // offer | answer
	SDP  string `json:"sdp"`
}

// Candidate carries a trickled ICE candidate.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}

// NegotiationBody is the tagged union inside a negotiation frame. Exactly one
// of Description/Candidate is set, selected by Kind. Clients encode and decode
// this; the relay forwards it as raw bytes.
type NegotiationBody struct {
	Kind        string       `json:"kind"` // description | candidate
	Description *Description `json:"description,omitempty"`
	Candidate   *Candidate   `json:"candidate,omitempty"`
}

func DescriptionBody(kind, sdp string) NegotiationBody {
	return NegotiationBody{
		Kind:        NegotiationDescription,
		Description: &Description{Kind: kind, SDP: sdp},
	}
}

func CandidateBody(c Candidate) NegotiationBody {
	return NegotiationBody{Kind: NegotiationCandidate, Candidate: &c}
}

// DecodeNegotiationBody parses and validates the union: the tag must name the
// one variant that is present, never inferred from which fields happen to
// exist.
func DecodeNegotiationBody(raw []byte) (NegotiationBody, error) {
	var b NegotiationBody
	if err := json.Unmarshal(raw, &b); err != nil {
		return NegotiationBody{}, fmt.Errorf("%w: %w", ErrBadNegotiation, err)
	}
	switch b.Kind {
	case NegotiationDescription:
		if b.Description == nil || b.Candidate != nil {
			return NegotiationBody{}, ErrBadNegotiation
		}
		if b.Description.Kind != DescriptionOffer && b.Description.Kind != DescriptionAnswer {
			return NegotiationBody{}, fmt.Errorf("%w: description kind %q", ErrBadNegotiation, b.Description.Kind)
		}
	case NegotiationCandidate:
		if b.Candidate == nil || b.Description != nil {
			return NegotiationBody{}, ErrBadNegotiation
		}
	default:
		return NegotiationBody{}, fmt.Errorf("%w: kind %q", ErrBadNegotiation, b.Kind)
	}
	return b, nil
}
