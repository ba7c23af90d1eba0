package crowdfund

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"clearfund/core/events"
	"clearfund/core/types"
)

const (
	// EventTypeCampaignLaunched is emitted when a campaign is registered.
	EventTypeCampaignLaunched = "crowdfund.campaign.launched"
	// EventTypeCampaignCancelled is emitted when an owner cancels before start.
	EventTypeCampaignCancelled = "crowdfund.campaign.cancelled"
	// EventTypeCampaignUpdated is emitted when the descriptive fields change.
	EventTypeCampaignUpdated = "crowdfund.campaign.updated"
	// EventTypeCampaignClaimed is emitted when the owner collects the pool.
	EventTypeCampaignClaimed = "crowdfund.campaign.claimed"
	// EventTypePledged is emitted on every successful pledge.
	EventTypePledged = "crowdfund.pledged"
	// EventTypeUnpledged is emitted on every successful withdrawal.
	EventTypeUnpledged = "crowdfund.unpledged"
	// EventTypeRefunded is emitted when an investor is made whole after a
	// failed campaign.
	EventTypeRefunded = "crowdfund.refunded"
	// EventTypeDonorPassMinted is emitted when a qualifying pledge earns a
	// donor pass token.
	EventTypeDonorPassMinted = "crowdfund.donorpass.minted"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func campaignAttributes(c *Campaign) map[string]string {
	if c == nil {
		return map[string]string{}
	}
	return map[string]string{
		"campaignId":    strconv.FormatUint(c.ID, 10),
		"owner":         hexAddr(c.Owner),
		"fundGoal":      formatAmount(c.FundGoal),
		"startsAt":      strconv.FormatUint(c.StartsAt, 10),
		"endsAt":        strconv.FormatUint(c.EndsAt, 10),
		"pledgedAmount": formatAmount(c.PledgedAmount),
		"pledgedCount":  strconv.FormatUint(c.PledgedCount, 10),
	}
}

// CampaignLaunchedEvent returns the canonical payload for a new campaign.
func CampaignLaunchedEvent(c *Campaign) *types.Event {
	return &types.Event{Type: EventTypeCampaignLaunched, Attributes: campaignAttributes(c)}
}

// CampaignCancelledEvent returns the canonical payload for a cancellation.
func CampaignCancelledEvent(c *Campaign) *types.Event {
	return &types.Event{Type: EventTypeCampaignCancelled, Attributes: campaignAttributes(c)}
}

// CampaignUpdatedEvent returns the canonical payload for a metadata update.
func CampaignUpdatedEvent(c *Campaign) *types.Event {
	return &types.Event{Type: EventTypeCampaignUpdated, Attributes: campaignAttributes(c)}
}

// CampaignClaimedEvent returns the canonical payload emitted when the owner
// collects the pledged pool.
func CampaignClaimedEvent(c *Campaign, amount *big.Int) *types.Event {
	attrs := campaignAttributes(c)
	attrs["amount"] = formatAmount(amount)
	return &types.Event{Type: EventTypeCampaignClaimed, Attributes: attrs}
}

// PledgedEvent returns the canonical payload for a successful pledge.
func PledgedEvent(c *Campaign, investor [20]byte, amount *big.Int) *types.Event {
	attrs := campaignAttributes(c)
	attrs["investor"] = hexAddr(investor)
	attrs["amount"] = formatAmount(amount)
	return &types.Event{Type: EventTypePledged, Attributes: attrs}
}

// UnpledgedEvent returns the canonical payload for a successful withdrawal.
func UnpledgedEvent(c *Campaign, investor [20]byte, amount *big.Int) *types.Event {
	attrs := campaignAttributes(c)
	attrs["investor"] = hexAddr(investor)
	attrs["amount"] = formatAmount(amount)
	return &types.Event{Type: EventTypeUnpledged, Attributes: attrs}
}

// RefundedEvent returns the canonical payload for an investor refund.
func RefundedEvent(c *Campaign, investor [20]byte, amount *big.Int) *types.Event {
	attrs := campaignAttributes(c)
	attrs["investor"] = hexAddr(investor)
	attrs["amount"] = formatAmount(amount)
	return &types.Event{Type: EventTypeRefunded, Attributes: attrs}
}

// DonorPassMintedEvent returns the canonical payload emitted when a qualifying
// pledge mints a donor pass.
func DonorPassMintedEvent(campaignID uint64, investor [20]byte, tokenID uint64) *types.Event {
	return &types.Event{
		Type: EventTypeDonorPassMinted,
		Attributes: map[string]string{
			"campaignId": strconv.FormatUint(campaignID, 10),
			"investor":   hexAddr(investor),
			"tokenId":    strconv.FormatUint(tokenID, 10),
		},
	}
}
