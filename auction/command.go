package auction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// CommandType tags an inbound message.
type CommandType string

const (
	CommandJoin        CommandType = "join"
	CommandPlaceBid    CommandType = "place-bid"
	CommandStart       CommandType = "admin-start"
	CommandNext        CommandType = "admin-next"
	CommandMarkSold    CommandType = "admin-mark-sold"
	CommandMarkUnsold  CommandType = "admin-mark-unsold"
	CommandStartUnsold CommandType = "admin-start-unsold"
)

// Privileged reports whether the command requires the admin role.
func (t CommandType) Privileged() bool {
	switch t {
	case CommandStart, CommandNext, CommandMarkSold, CommandMarkUnsold, CommandStartUnsold:
		return true
	}
	return false
}

// Command is one of the inbound variants below.
type Command interface {
	CommandType() CommandType
	Validate() error
}

// Join asks for the current snapshot.
type Join struct{}

// PlaceBid submits a bid on the open lot. BidderID defaults to the issuer.
type PlaceBid struct {
	BidderID int64 `json:"bidderId,omitempty"`
	Amount   int64 `json:"amount"`
}

// Start queues every pending lot and opens the first.
type Start struct{}

// Next closes the open lot and opens its successor. LotID, when set, must
// name the open lot.
type Next struct {
	LotID int64 `json:"lotId,omitempty"`
}

// MarkSold confirms the leading bid on the open lot.
type MarkSold struct {
	LotID    int64 `json:"lotId"`
	WinnerID int64 `json:"winnerId,omitempty"`
}

// MarkUnsold reverses the open lot and refunds its bids.
type MarkUnsold struct {
	LotID int64 `json:"lotId"`
}

// StartUnsold requeues every unsold lot and opens the first.
type StartUnsold struct{}

func (Join) CommandType() CommandType        { return CommandJoin }
func (PlaceBid) CommandType() CommandType    { return CommandPlaceBid }
func (Start) CommandType() CommandType       { return CommandStart }
func (Next) CommandType() CommandType        { return CommandNext }
func (MarkSold) CommandType() CommandType    { return CommandMarkSold }
func (MarkUnsold) CommandType() CommandType  { return CommandMarkUnsold }
func (StartUnsold) CommandType() CommandType { return CommandStartUnsold }

func (Join) Validate() error        { return nil }
func (Start) Validate() error       { return nil }
func (StartUnsold) Validate() error { return nil }

func (c PlaceBid) Validate() error {
	if c.Amount <= 0 {
		return Invalid(ReasonMalformed, "amount must be positive")
	}
	if c.BidderID < 0 {
		return Invalid(ReasonMalformed, "bidderId must be positive")
	}
	return nil
}

func (c Next) Validate() error {
	if c.LotID < 0 {
		return Invalid(ReasonMalformed, "lotId must be positive")
	}
	return nil
}

func (c MarkSold) Validate() error {
	if c.LotID <= 0 {
		return Invalid(ReasonMalformed, "lotId is required")
	}
	if c.WinnerID < 0 {
		return Invalid(ReasonMalformed, "winnerId must be positive")
	}
	return nil
}

func (c MarkUnsold) Validate() error {
	if c.LotID <= 0 {
		return Invalid(ReasonMalformed, "lotId is required")
	}
	return nil
}

type envelope struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseCommand decodes a tagged {"type", "payload"} envelope into its
// variant and validates it. Unknown types and unknown payload fields are
// rejected as malformed.
func ParseCommand(data []byte) (Command, error) {
	var env envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return nil, Invalid(ReasonMalformed, "invalid message: %v", err)
	}

	var cmd Command
	switch env.Type {
	case CommandJoin:
		cmd = &Join{}
	case CommandPlaceBid:
		cmd = &PlaceBid{}
	case CommandStart:
		cmd = &Start{}
	case CommandNext:
		cmd = &Next{}
	case CommandMarkSold:
		cmd = &MarkSold{}
	case CommandMarkUnsold:
		cmd = &MarkUnsold{}
	case CommandStartUnsold:
		cmd = &StartUnsold{}
	case "":
		return nil, Invalid(ReasonMalformed, "message type is required")
	default:
		return nil, Invalid(ReasonMalformed, "unknown message type %q", env.Type)
	}

	if len(env.Payload) > 0 && !bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		if err := strictUnmarshal(env.Payload, cmd); err != nil {
			return nil, Invalid(ReasonMalformed, "invalid %s payload: %v", env.Type, err)
		}
	}

	cmd = deref(cmd)
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// EncodeCommand wraps cmd in its envelope.
func EncodeCommand(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", cmd.CommandType(), err)
	}
	return json.Marshal(envelope{Type: cmd.CommandType(), Payload: payload})
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after message")
	}
	return nil
}

// deref returns the value form of the decoded variant so callers can type
// switch on plain structs.
func deref(cmd Command) Command {
	switch c := cmd.(type) {
	case *Join:
		return *c
	case *PlaceBid:
		return *c
	case *Start:
		return *c
	case *Next:
		return *c
	case *MarkSold:
		return *c
	case *MarkUnsold:
		return *c
	case *StartUnsold:
		return *c
	}
	return cmd
}
