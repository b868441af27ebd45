package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type SessionKind string

const (
	SessionPromoEntry      SessionKind = "promo_entry"
	SessionTariffSelection SessionKind = "tariff_selection"
	SessionSupportChat     SessionKind = "support_chat"
	SessionBroadcast       SessionKind = "broadcast"
)

// Session is the conversation state of one chat user. Each variant carries only
// the fields valid for its step.
type Session interface {
	Kind() SessionKind
}

type PromoStep string

const PromoStepAwaitingCode PromoStep = "awaiting_code"

// PromoEntry: the bot asked for a promo code and waits for the next message.
type PromoEntry struct {
	Step PromoStep `json:"step"`
}

// TariffSelection: a discount promo was redeemed and applies to the next purchase.
type TariffSelection struct {
	DiscountPercent int    `json:"discount_percent"`
	PromoCode       string `json:"promo_code"`
}

// SupportChat: user messages are relayed into the support topic.
type SupportChat struct {
	TopicID      int64     `json:"topic_id"`
	LastActivity time.Time `json:"last_activity"`
}

type BroadcastStep string

const (
	BroadcastChooseAudience BroadcastStep = "choose_audience"
	BroadcastAwaitingText   BroadcastStep = "awaiting_text"
)

type BroadcastAudience string

const (
	AudienceAll    BroadcastAudience = "all"
	AudienceUnpaid BroadcastAudience = "unpaid"
)

// Broadcast: an admin is composing a mailing.
type Broadcast struct {
	Step     BroadcastStep     `json:"step"`
	Audience BroadcastAudience `json:"audience,omitempty"`
}

func (PromoEntry) Kind() SessionKind      { return SessionPromoEntry }
func (TariffSelection) Kind() SessionKind { return SessionTariffSelection }
func (SupportChat) Kind() SessionKind     { return SessionSupportChat }
func (Broadcast) Kind() SessionKind       { return SessionBroadcast }

// Expired reports whether the support chat idled longer than timeout.
func (s SupportChat) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

type sessionEnvelope struct {
	Kind SessionKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalSession encodes a session with its discriminator.
func MarshalSession(s Session) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("marshal session: nil")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sessionEnvelope{Kind: s.Kind(), Data: data})
}

// UnmarshalSession decodes the envelope written by MarshalSession.
func UnmarshalSession(b []byte) (Session, error) {
	var env sessionEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	var (
		s   Session
		err error
	)
	switch env.Kind {
	case SessionPromoEntry:
		var v PromoEntry
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SessionTariffSelection:
		var v TariffSelection
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SessionSupportChat:
		var v SupportChat
		err = json.Unmarshal(env.Data, &v)
		s = v
	case SessionBroadcast:
		var v Broadcast
		err = json.Unmarshal(env.Data, &v)
		s = v
	default:
		return nil, fmt.Errorf("unknown session kind %q", env.Kind)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
