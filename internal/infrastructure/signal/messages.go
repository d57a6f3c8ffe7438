package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"locallive/internal/core/domain"
	"locallive/pkg/validation"
)

const (
	TypeOffer  = "offer"
	TypeAnswer = "answer"
	TypeLeave  = "leave"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeError  = "error"
)

type Message struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	UID     string          `json:"uid,omitempty"`
	Role    domain.Role     `json:"role,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// validateSDP performs the cheap structural checks before handing an offer
// to the SFU.
func validateSDP(sdp string) error {
	if sdp == "" {
		return fmt.Errorf("SDP cannot be empty")
	}
	if !strings.HasPrefix(sdp, "v=") {
		return fmt.Errorf("invalid SDP format: must start with 'v='")
	}
	for _, field := range []string{"o=", "s=", "t="} {
		if !strings.Contains(sdp, field) {
			return fmt.Errorf("invalid SDP format: missing required field '%s'", field)
		}
	}
	return nil
}

func validateJoin(channel, uid string, role domain.Role) error {
	if err := validation.ValidateChannel(channel); err != nil {
		return err
	}
	if err := validation.ValidateChannel(uid); err != nil {
		return fmt.Errorf("invalid uid: %w", err)
	}
	if !role.Valid() {
		return fmt.Errorf("role must be host or audience")
	}
	return nil
}
