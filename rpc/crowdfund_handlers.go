package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"clearfund/crypto"
	"clearfund/native/crowdfund"
)

type launchParams struct {
	Caller      string `json:"caller"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	FundGoal    string `json:"fundGoal"`
	StartsAt    uint64 `json:"startsAt"`
	EndsAt      uint64 `json:"endsAt"`
}

type campaignActorParams struct {
	Caller     string `json:"caller"`
	CampaignID uint64 `json:"campaignId"`
}

type updateParams struct {
	Caller      string `json:"caller"`
	CampaignID  uint64 `json:"campaignId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

type pledgeParams struct {
	Caller     string `json:"caller"`
	CampaignID uint64 `json:"campaignId"`
	Amount     string `json:"amount"`
}

type campaignIDParams struct {
	CampaignID uint64 `json:"campaignId"`
}

type investmentParams struct {
	CampaignID uint64 `json:"campaignId"`
	Investor   string `json:"investor"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type campaignJSON struct {
	ID              uint64 `json:"id"`
	Owner           string `json:"owner"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Link            string `json:"link"`
	FundGoal        string `json:"fundGoal"`
	StartsAt        uint64 `json:"startsAt"`
	EndsAt          uint64 `json:"endsAt"`
	PledgedAmount   string `json:"pledgedAmount"`
	PledgedCount    uint64 `json:"pledgedCount"`
	TargetReached   bool   `json:"targetReached"`
	TargetReachedBy uint64 `json:"targetReachedBy"`
	Claimed         bool   `json:"claimed"`
}

type investmentJSON struct {
	CampaignID uint64 `json:"campaignId"`
	Investor   string `json:"investor"`
	Amount     string `json:"amount"`
}

func formatCampaignJSON(c *crowdfund.Campaign) *campaignJSON {
	if c == nil {
		return nil
	}
	return &campaignJSON{
		ID:              c.ID,
		Owner:           crypto.FormatAddress(c.Owner),
		Title:           c.Title,
		Description:     string(c.Description),
		Link:            c.Link,
		FundGoal:        c.FundGoal.String(),
		StartsAt:        c.StartsAt,
		EndsAt:          c.EndsAt,
		PledgedAmount:   c.PledgedAmount.String(),
		PledgedCount:    c.PledgedCount,
		TargetReached:   c.TargetReached,
		TargetReachedBy: c.TargetReachedBy,
		Claimed:         c.Claimed,
	}
}

func formatInvestmentJSON(inv *crowdfund.Investment) *investmentJSON {
	if inv == nil {
		return nil
	}
	return &investmentJSON{
		CampaignID: inv.CampaignID,
		Investor:   crypto.FormatAddress(inv.Investor),
		Amount:     inv.Amount.String(),
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	parsed, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return parsed, nil
}

// decodeDescription accepts either plain text or 0x-prefixed hex payloads.
func decodeDescription(value string) []byte {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		if decoded, err := hex.DecodeString(value[2:]); err == nil {
			return decoded
		}
	}
	return []byte(value)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params launchParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	fundGoal, err := parsePositiveBigInt(params.FundGoal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	id, err := s.node.CampaignLaunch(caller, params.Title, decodeDescription(params.Description), params.Link, fundGoal, params.StartsAt, params.EndsAt)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err)
		return "error"
	}
	writeResult(w, req.ID, id)
	return "ok"
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	return s.handleCampaignTransition(w, r, req, s.node.CampaignCancel)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	return s.handleCampaignTransition(w, r, req, s.node.CampaignClaim)
}

func (s *Server) handleCampaignTransition(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn func([20]byte, uint64) error) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params campaignActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := fn(caller, params.CampaignID); err != nil {
		writeEngineError(w, req.ID, req.Method, err)
		return "error"
	}
	writeResult(w, req.ID, "ok")
	return "ok"
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params updateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.node.CampaignUpdate(caller, params.CampaignID, params.Title, decodeDescription(params.Description), params.Link); err != nil {
		writeEngineError(w, req.ID, req.Method, err)
		return "error"
	}
	writeResult(w, req.ID, "ok")
	return "ok"
}

func (s *Server) handlePledge(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	return s.handleInvestmentMutation(w, r, req, s.node.Pledge)
}

func (s *Server) handleUnpledge(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	return s.handleInvestmentMutation(w, r, req, s.node.Unpledge)
}

func (s *Server) handleInvestmentMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest, fn func([20]byte, uint64, *big.Int) error) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params pledgeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := fn(caller, params.CampaignID, amount); err != nil {
		writeEngineError(w, req.ID, req.Method, err)
		return "error"
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return "error"
	}
	var params campaignActorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	caller, err := crypto.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	if err := s.node.Refund(caller, params.CampaignID); err != nil {
		writeEngineError(w, req.ID, req.Method, err)
		return "error"
	}
	writeResult(w, req.ID, true)
	return "ok"
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, req *RPCRequest) string {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	campaign, err := s.node.CampaignGet(params.CampaignID)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err)
		return "error"
	}
	writeResult(w, req.ID, formatCampaignJSON(campaign))
	return "ok"
}

func (s *Server) handleGetInvestment(w http.ResponseWriter, req *RPCRequest) string {
	var params investmentParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	investor, err := crypto.ParseAddress(params.Investor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	investment, err := s.node.InvestmentGet(params.CampaignID, investor)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err)
		return "error"
	}
	if investment == nil {
		writeResult(w, req.ID, nil)
		return "ok"
	}
	writeResult(w, req.ID, formatInvestmentJSON(investment))
	return "ok"
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	addr, err := crypto.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return "error"
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err)
		return "error"
	}
	writeResult(w, req.ID, balance.String())
	return "ok"
}

func (s *Server) handleGetEvents(w http.ResponseWriter, req *RPCRequest) string {
	writeResult(w, req.ID, s.node.Events())
	return "ok"
}
