package wire

import "encoding/json"

// Envelope is the outer frame of every protocol message. IsYourTurn rides on
// the envelope (not the payload) for init_game and move frames so clients can
// flip their turn indicator without inspecting the payload.
type Envelope struct {
	Type       string          `json:"type"`
	IsYourTurn *bool           `json:"isYourTurn,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Encode builds a marshaled envelope around payload. A nil payload produces
// an envelope with the type tag only.
func Encode(msgType string, payload any) ([]byte, error) {
	return EncodeTurn(msgType, nil, payload)
}

// EncodeTurn is Encode with the envelope-level isYourTurn flag set.
func EncodeTurn(msgType string, isYourTurn *bool, payload any) ([]byte, error) {
	env := Envelope{Type: msgType, IsYourTurn: isYourTurn}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an inbound frame into its envelope. Payload parsing is left
// to the dispatcher, which knows the expected shape per type.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Bool returns a pointer for envelope turn flags.
func Bool(v bool) *bool { return &v }
