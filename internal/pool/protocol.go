package pool

import (
	"encoding/json"
	"fmt"
)

// UserAgent identifies this miner to the pool
const UserAgent = "graxil/1.0"

// loginID is the fixed request id of the login exchange
const loginID = 1

type loginParams struct {
	Login string   `json:"login"`
	Pass  string   `json:"pass"`
	Agent string   `json:"agent"`
	Algo  []string `json:"algo"`
}

type loginRequest struct {
	ID      uint64      `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  loginParams `json:"params"`
}

type submitParams struct {
	ID     string `json:"id"`
	JobID  string `json:"job_id"`
	Nonce  string `json:"nonce"`
	Result string `json:"result"`
}

type submitRequest struct {
	ID      uint64       `json:"id"`
	JSONRPC string       `json:"jsonrpc"`
	Method  string       `json:"method"`
	Params  submitParams `json:"params"`
}

// buildLoginRequest serializes the login frame. Note algo is an array; some
// pools drop the connection when it is a bare string.
func buildLoginRequest(wallet, worker string) ([]byte, error) {
	if wallet == "" {
		return nil, fmt.Errorf("empty wallet address")
	}
	req := loginRequest{
		ID:      loginID,
		JSONRPC: "2.0",
		Method:  "login",
		Params: loginParams{
			Login: wallet,
			Pass:  worker,
			Agent: UserAgent,
			Algo:  []string{"sha3x"},
		},
	}
	frame, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return append(frame, '\n'), nil
}

// buildSubmitRequest serializes a share submission. The params.id is the
// pool session id when one was assigned at login, else the wallet address.
func buildSubmitRequest(id uint64, sessionOrWallet, jobID, nonceHex, resultHex string) ([]byte, error) {
	if jobID == "" || nonceHex == "" || resultHex == "" {
		return nil, fmt.Errorf("incomplete share submission: job_id=%q nonce=%q result=%q", jobID, nonceHex, resultHex)
	}
	req := submitRequest{
		ID:      id,
		JSONRPC: "2.0",
		Method:  "submit",
		Params: submitParams{
			ID:     sessionOrWallet,
			JobID:  jobID,
			Nonce:  nonceHex,
			Result: resultHex,
		},
	}
	frame, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return append(frame, '\n'), nil
}
