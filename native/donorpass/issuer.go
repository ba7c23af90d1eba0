package donorpass

import (
	"encoding/hex"
	"errors"
	"strconv"

	"clearfund/core/events"
	"clearfund/core/types"
)

var errNilState = errors.New("donorpass issuer: state not configured")

// IssuerState is the minimal persistence surface the issuer needs: a
// monotonically increasing token counter and per-token ownership.
type IssuerState interface {
	DonorPassNextTokenID() (uint64, error)
	DonorPassOwnerPut(tokenID uint64, owner [20]byte) error
	DonorPassOwnerGet(tokenID uint64) ([20]byte, bool, error)
}

// EventTypeMinted is emitted for every donor pass issued.
const EventTypeMinted = "donorpass.minted"

type mintEvent struct {
	evt *types.Event
}

func (e mintEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e mintEvent) Event() *types.Event { return e.evt }

// Issuer mints non-fungible donor pass tokens with sequential identifiers.
// Token ids start at one and are never reused.
type Issuer struct {
	state   IssuerState
	emitter events.Emitter
}

// NewIssuer constructs an issuer with a no-op emitter.
func NewIssuer() *Issuer {
	return &Issuer{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the issuer.
func (i *Issuer) SetState(state IssuerState) { i.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (i *Issuer) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		i.emitter = events.NoopEmitter{}
		return
	}
	i.emitter = emitter
}

// Mint issues the next donor pass to the supplied owner and returns its id.
func (i *Issuer) Mint(to [20]byte) (uint64, error) {
	if i == nil || i.state == nil {
		return 0, errNilState
	}
	tokenID, err := i.state.DonorPassNextTokenID()
	if err != nil {
		return 0, err
	}
	if err := i.state.DonorPassOwnerPut(tokenID, to); err != nil {
		return 0, err
	}
	if i.emitter != nil {
		i.emitter.Emit(mintEvent{evt: &types.Event{
			Type: EventTypeMinted,
			Attributes: map[string]string{
				"tokenId": strconv.FormatUint(tokenID, 10),
				"owner":   "0x" + hex.EncodeToString(to[:]),
			},
		}})
	}
	return tokenID, nil
}

// OwnerOf reports the owner of a minted token.
func (i *Issuer) OwnerOf(tokenID uint64) ([20]byte, bool, error) {
	if i == nil || i.state == nil {
		return [20]byte{}, false, errNilState
	}
	return i.state.DonorPassOwnerGet(tokenID)
}
