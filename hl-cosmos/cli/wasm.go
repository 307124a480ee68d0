package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

const (
	eventStoreCode   = "store_code"
	eventInstantiate = "instantiate"
)

// StoreCode uploads a wasm artifact and returns its code id.
func (c *InjectiveCLI) StoreCode(ctx context.Context, endpoint Endpoint, sender string, wasmPath string) (uint64, error) {
	res, err := c.broadcast(ctx, endpoint, sender, "tx", "wasm", "store", wasmPath)
	if err != nil {
		return 0, fmt.Errorf("failed to store %s: %w", wasmPath, err)
	}
	v, ok := res.EventAttribute(eventStoreCode, "code_id")
	if !ok {
		return 0, fmt.Errorf("tx %s has no code_id", res.TxHash)
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid code_id %q: %w", v, err)
	}
	return id, nil
}

// StoreCodes uploads every artifact of the name -> path map, in name order.
func (c *InjectiveCLI) StoreCodes(ctx context.Context, endpoint Endpoint, sender string, codes map[string]string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(codes))
	for _, name := range slices.Sorted(maps.Keys(codes)) {
		id, err := c.StoreCode(ctx, endpoint, sender, codes[name])
		if err != nil {
			return nil, err
		}
		c.log.Info("Stored code", "name", name, "codeID", id)
		out[name] = id
	}
	return out, nil
}

// WasmInstantiate instantiates a stored code, with the sender as contract admin, and returns the contract address.
func (c *InjectiveCLI) WasmInstantiate(ctx context.Context, endpoint Endpoint, sender string, codeID uint64, msg any, label string) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode instantiate msg: %w", err)
	}
	admin, err := c.KeyAddress(ctx, sender)
	if err != nil {
		return "", err
	}
	res, err := c.broadcast(ctx, endpoint, sender,
		"tx", "wasm", "instantiate", strconv.FormatUint(codeID, 10), string(payload),
		"--label", label, "--admin", admin)
	if err != nil {
		return "", fmt.Errorf("failed to instantiate %s: %w", label, err)
	}
	addr, ok := res.EventAttribute(eventInstantiate, "_contract_address")
	if !ok {
		return "", fmt.Errorf("tx %s has no contract address", res.TxHash)
	}
	return addr, nil
}

// WasmExecute executes a contract message, sending funds along if not empty.
func (c *InjectiveCLI) WasmExecute(ctx context.Context, endpoint Endpoint, sender string, contract string, msg any, funds Coins) (*TxResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute msg: %w", err)
	}
	args := []string{"tx", "wasm", "execute", contract, string(payload)}
	if len(funds) > 0 {
		args = append(args, "--amount", funds.String())
	}
	res, err := c.broadcast(ctx, endpoint, sender, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute on %s: %w", contract, err)
	}
	return res, nil
}

// WasmQuery runs a smart query, and decodes the response data into out.
func (c *InjectiveCLI) WasmQuery(ctx context.Context, endpoint Endpoint, contract string, msg any, out any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode query msg: %w", err)
	}
	var res smartQueryResponse
	if err := c.runJSON(ctx, &res, "query", "wasm", "contract-state", "smart", contract, string(payload),
		"--node", endpoint.RPC, "--output", "json"); err != nil {
		return fmt.Errorf("failed to query %s: %w", contract, err)
	}
	if err := json.Unmarshal(res.Data, out); err != nil {
		return fmt.Errorf("failed to decode query response of %s: %w", contract, err)
	}
	return nil
}
