// Package acquire implements the two ways a visitor obtains an analysis:
// linking a bank account and uploading PDF statements. A successful flow
// adopts a tentative analysis; a failed one leaves the store untouched.
package acquire

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// BankAPI is the subset of the server client used by the bank-link flow.
type BankAPI interface {
	CreateHandshakeToken(ctx context.Context) (model.LinkToken, error)
	ExchangeHandshake(ctx context.Context, publicToken string) (model.ExchangeResult, error)
	PullTransactions(ctx context.Context, accessToken string) (model.PullResult, error)
}

// Sink receives the analysis produced by a flow.
type Sink interface {
	Adopt(candidate model.CurrentAnalysis)
}

// LinkState is a step of the bank-link flow.
type LinkState string

const (
	LinkIdle               LinkState = "idle"
	LinkHandshakeRequested LinkState = "handshake-requested"
	LinkHandshakeReady     LinkState = "handshake-ready"
	LinkExchanging         LinkState = "exchanging"
	LinkPulling            LinkState = "pulling"
	LinkComplete           LinkState = "complete"
	LinkFailed             LinkState = "failed"
)

// LinkStatus is a point-in-time view of the flow.
type LinkStatus struct {
	State     LinkState `json:"state"`
	LinkToken string    `json:"link_token,omitempty"`
	Error     string    `json:"error,omitempty"`
	err       error
}

// Err returns the failure that moved the flow to LinkFailed.
func (s LinkStatus) Err() error {
	return s.err
}

// BankLink drives the handshake, exchange and pull against the server.
// Every Reset starts a new generation; a step that finishes under an older
// generation changes nothing.
type BankLink struct {
	api  BankAPI
	sink Sink
	log  zerolog.Logger

	mu    sync.Mutex
	gen   uint64
	state LinkState
	token string
	err   error
}

// NewBankLink creates an idle bank-link flow.
func NewBankLink(api BankAPI, sink Sink, log zerolog.Logger) *BankLink {
	return &BankLink{
		api:   api,
		sink:  sink,
		log:   log.With().Str("component", "banklink").Logger(),
		state: LinkIdle,
	}
}

// Status returns the current state and, once ready, the handshake token.
func (b *BankLink) Status() LinkStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := LinkStatus{State: b.state, err: b.err}
	if b.state == LinkHandshakeReady {
		st.LinkToken = b.token
	}
	if b.err != nil {
		st.Error = apperrors.Message(b.err)
	}
	return st
}

// Start requests a handshake token. It is only valid from idle.
func (b *BankLink) Start(ctx context.Context) (LinkStatus, error) {
	b.mu.Lock()
	if b.state != LinkIdle {
		state := b.state
		b.mu.Unlock()
		b.log.Debug().Str("state", string(state)).Msg("start ignored: flow not idle")
		return b.Status(), apperrors.Validation("start bank link", apperrors.ErrOperationInProgress)
	}
	b.state = LinkHandshakeRequested
	gen := b.gen
	b.mu.Unlock()

	lt, err := b.api.CreateHandshakeToken(ctx)
	if err != nil {
		b.fail(gen, err)
		return b.Status(), err
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return b.Status(), apperrors.Validation("start bank link", apperrors.ErrLinkRestarted)
	}
	b.state = LinkHandshakeReady
	b.token = lt.LinkToken
	b.mu.Unlock()

	b.log.Info().Msg("bank link handshake ready")
	return b.Status(), nil
}

// Complete consumes the public token yielded by the bank-link widget,
// exchanges it, pulls transactions and adopts the result.
func (b *BankLink) Complete(ctx context.Context, publicToken string) (model.CurrentAnalysis, error) {
	const op = "complete bank link"

	b.mu.Lock()
	if b.state != LinkHandshakeReady {
		b.mu.Unlock()
		return model.CurrentAnalysis{}, apperrors.Validation(op, apperrors.ErrHandshakeNotReady)
	}
	if publicToken == "" {
		b.mu.Unlock()
		return model.CurrentAnalysis{}, apperrors.Validation(op, apperrors.ErrMissingPublicToken)
	}
	b.state = LinkExchanging
	b.token = ""
	gen := b.gen
	b.mu.Unlock()

	ex, err := b.api.ExchangeHandshake(ctx, publicToken)
	if err != nil {
		b.fail(gen, err)
		return model.CurrentAnalysis{}, err
	}
	if ex.AccessToken == "" {
		err := apperrors.Server(op, 0, apperrors.ErrFailedToExchangeToken.Error())
		b.fail(gen, err)
		return model.CurrentAnalysis{}, err
	}

	if !b.setState(gen, LinkPulling) {
		return model.CurrentAnalysis{}, apperrors.Validation(op, apperrors.ErrLinkRestarted)
	}
	pull, err := b.api.PullTransactions(ctx, ex.AccessToken)
	if err != nil {
		b.fail(gen, err)
		return model.CurrentAnalysis{}, err
	}

	summary := pull.Analysis
	candidate := model.CurrentAnalysis{
		Summary:      &summary,
		Transactions: pull.Transactions,
		Provenance:   model.ProvenanceBankLink,
		Stage:        model.StageTentative,
		AccessToken:  ex.AccessToken,
		ItemID:       ex.ItemID,
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		b.log.Debug().Str("item_id", ex.ItemID).Msg("discarding bank link result from a restarted flow")
		return model.CurrentAnalysis{}, apperrors.Validation(op, apperrors.ErrLinkRestarted)
	}
	b.sink.Adopt(candidate)
	b.state = LinkComplete
	b.mu.Unlock()

	b.log.Info().
		Str("item_id", ex.ItemID).
		Int("transactions", len(pull.Transactions)).
		Msg("bank link complete")
	return candidate, nil
}

// Restart discards any previous outcome and requests a new handshake token.
func (b *BankLink) Restart(ctx context.Context) (LinkStatus, error) {
	b.Reset()
	return b.Start(ctx)
}

// Reset returns the flow to idle without contacting the server.
func (b *BankLink) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	b.state = LinkIdle
	b.token = ""
	b.err = nil
}

// setState moves the flow to s if gen is still current.
func (b *BankLink) setState(gen uint64, s LinkState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		return false
	}
	b.state = s
	return true
}

func (b *BankLink) fail(gen uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen {
		b.log.Debug().Err(err).Msg("ignoring failure from a restarted flow")
		return
	}
	b.log.Warn().Err(err).Str("state", string(b.state)).Msg("bank link failed")
	b.state = LinkFailed
	b.token = ""
	b.err = err
}
