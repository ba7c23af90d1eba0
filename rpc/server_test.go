package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"clearfund/core"
	"clearfund/crypto"
	"clearfund/storage"
)

const (
	ownerAddr    = "0x0000000000000000000000000000000000000001"
	investorAddr = "0x0000000000000000000000000000000000000002"
	vaultAddr    = "0x00000000000000000000000000000000000000ee"
)

func parseTestAddr(t *testing.T, hexAddr string) [20]byte {
	t.Helper()
	addr, err := crypto.ParseAddress(hexAddr)
	require.NoError(t, err)
	return addr
}

type testRig struct {
	node   *core.Node
	server *httptest.Server
	token  string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	vault := parseTestAddr(t, vaultAddr)
	node, err := core.NewNode(storage.NewMemDB(), vault)
	require.NoError(t, err)

	srv := NewServer(node)
	ts := httptest.NewServer(http.HandlerFunc(srv.handle))
	t.Cleanup(ts.Close)
	return &testRig{node: node, server: ts}
}

func (rig *testRig) call(t *testing.T, method string, params interface{}) (*RPCResponse, int) {
	t.Helper()
	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		reqBody["params"] = []interface{}{params}
	}
	raw, err := json.Marshal(reqBody)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, rig.server.URL, bytes.NewReader(raw))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	if rig.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+rig.token)
	}

	resp, err := rig.server.Client().Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := new(RPCResponse)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(decoded))
	return decoded, resp.StatusCode
}

func (rig *testRig) launchDefault(t *testing.T) uint64 {
	t.Helper()
	resp, status := rig.call(t, "clearfund_launch", map[string]interface{}{
		"caller":      ownerAddr,
		"title":       "Test Campaign",
		"description": "This is a campaign that I made.",
		"link":        "https://example.com",
		"fundGoal":    "10000",
		"startsAt":    2,
		"endsAt":      100,
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	id, ok := resp.Result.(float64)
	require.True(t, ok)
	return uint64(id)
}

func (rig *testRig) advanceTo(t *testing.T, target uint64) {
	t.Helper()
	for rig.node.CurrentHeight() < target {
		_, err := rig.node.AdvanceHeight()
		require.NoError(t, err)
	}
}

func TestLaunchAndGetCampaign(t *testing.T) {
	rig := newTestRig(t)
	id := rig.launchDefault(t)
	require.Equal(t, uint64(1), id)

	resp, status := rig.call(t, "clearfund_getCampaign", map[string]interface{}{"campaignId": id})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	campaign, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "Test Campaign", campaign["title"])
	require.Equal(t, ownerAddr, campaign["owner"])
	require.Equal(t, "10000", campaign["fundGoal"])
	require.Equal(t, "0", campaign["pledgedAmount"])
	require.Equal(t, false, campaign["targetReached"])
}

func TestEngineGuardCodesSurviveTheWire(t *testing.T) {
	rig := newTestRig(t)
	id := rig.launchDefault(t)

	// Cancel by a non-owner keeps the canonical code with HTTP 200.
	resp, status := rig.call(t, "clearfund_cancel", map[string]interface{}{
		"caller":     investorAddr,
		"campaignId": id,
	})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, 107, resp.Error.Code)

	// Lookups against an unknown campaign report code 105.
	resp, status = rig.call(t, "clearfund_getCampaign", map[string]interface{}{"campaignId": 42})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, 105, resp.Error.Code)
}

func TestPledgeFlowOverRPC(t *testing.T) {
	rig := newTestRig(t)
	investor := parseTestAddr(t, investorAddr)
	require.NoError(t, rig.node.FundAccount(investor, big.NewInt(50_000)))
	id := rig.launchDefault(t)
	rig.advanceTo(t, 6)

	resp, status := rig.call(t, "clearfund_pledge", map[string]interface{}{
		"caller":     investorAddr,
		"campaignId": id,
		"amount":     "20000",
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	require.Equal(t, true, resp.Result)

	resp, _ = rig.call(t, "clearfund_getInvestment", map[string]interface{}{
		"campaignId": id,
		"investor":   investorAddr,
	})
	require.Nil(t, resp.Error)
	investment, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "20000", investment["amount"])

	resp, _ = rig.call(t, "clearfund_getBalance", map[string]interface{}{"address": vaultAddr})
	require.Nil(t, resp.Error)
	require.Equal(t, "20000", resp.Result)

	resp, _ = rig.call(t, "clearfund_getCampaign", map[string]interface{}{"campaignId": id})
	require.Nil(t, resp.Error)
	campaign := resp.Result.(map[string]interface{})
	require.Equal(t, true, campaign["targetReached"])
	require.Equal(t, float64(6), campaign["targetReachedBy"])
}

func TestGetInvestmentReturnsNullWhenAbsent(t *testing.T) {
	rig := newTestRig(t)
	resp, status := rig.call(t, "clearfund_getInvestment", map[string]interface{}{
		"campaignId": 1,
		"investor":   investorAddr,
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	require.Nil(t, resp.Result)
}

func TestInvalidParamsRejected(t *testing.T) {
	rig := newTestRig(t)

	resp, status := rig.call(t, "clearfund_launch", map[string]interface{}{
		"caller": "not-an-address",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	// Missing params object entirely.
	resp, status = rig.call(t, "clearfund_getCampaign", nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestMethodNotFound(t *testing.T) {
	rig := newTestRig(t)
	resp, status := rig.call(t, "clearfund_unknown", map[string]interface{}{})
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestGetOnlyAcceptsPost(t *testing.T) {
	rig := newTestRig(t)
	resp, err := rig.server.Client().Get(rig.server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBearerTokenGuardsMutations(t *testing.T) {
	t.Setenv(authTokenEnv, "secret-token")
	rig := newTestRig(t)

	// Mutations without the token are rejected.
	resp, status := rig.call(t, "clearfund_launch", map[string]interface{}{
		"caller":      ownerAddr,
		"title":       "Test Campaign",
		"description": "d",
		"link":        "https://example.com",
		"fundGoal":    "10000",
		"startsAt":    2,
		"endsAt":      100,
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	// Reads stay open.
	resp, status = rig.call(t, "clearfund_getHeight", map[string]interface{}{})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)

	// The right token unlocks mutations.
	rig.token = "secret-token"
	id := rig.launchDefault(t)
	require.Equal(t, uint64(1), id)
}
