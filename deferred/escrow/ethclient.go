package escrow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClient implements Client against a live JSON-RPC node, signing
// transactions with an in-process ECDSA key the way signers/evm's
// ClientSigner reads and writes contracts.
type EthClient struct {
	rpc        *ethclient.Client
	signerAddr common.Address
	signFn     func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// pollInterval is how often WaitForTransactionReceipt re-polls the node.
const pollInterval = 2 * time.Second

// NewEthClient wires an ethclient.Client and a raw ECDSA hex key into a
// facilitator-side Client able to submit escrow transactions.
func NewEthClient(rpc *ethclient.Client, privateKeyHex string) (*EthClient, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid facilitator private key: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	return &EthClient{
		rpc:        rpc,
		signerAddr: addr,
		signFn: func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
			signer := types.LatestSignerForChainID(chainID)
			return types.SignTx(tx, signer, key)
		},
	}, nil
}

func (c *EthClient) ReadContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) ([]interface{}, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	addr := common.HexToAddress(address)
	result, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s contract call failed: %w", method, err)
	}
	outputs, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return outputs, nil
}

func (c *EthClient) WriteContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return "", fmt.Errorf("failed to parse ABI: %w", err)
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	nonce, err := c.rpc.PendingNonceAt(ctx, c.signerAddr)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}
	chainID, err := c.rpc.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch chain id: %w", err)
	}
	tip, err := c.rpc.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(100_000_000) // 0.1 gwei fallback
	}
	header, err := c.rpc.HeaderByNumber(ctx, nil)
	baseFee := big.NewInt(1_000_000_000)
	if err == nil && header.BaseFee != nil {
		baseFee = header.BaseFee
	}
	maxFee := new(big.Int).Add(new(big.Int).Mul(big.NewInt(2), baseFee), tip)

	addr := common.HexToAddress(address)
	gas, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: c.signerAddr, To: &addr, Data: data})
	if err != nil {
		gas = 500_000
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gas,
		To:        &addr,
		Data:      data,
	})
	signedTx, err := c.signFn(tx, chainID)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s transaction: %w", method, err)
	}
	if err := c.rpc.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to submit %s transaction: %w", method, err)
	}
	return signedTx.Hash().Hex(), nil
}

func (c *EthClient) WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error) {
	receipt, err := waitMined(ctx, c.rpc, common.HexToHash(txHash))
	if err != nil {
		return nil, err
	}
	logs := make([]Log, len(receipt.Logs))
	for i, l := range receipt.Logs {
		topics := make([]string, len(l.Topics))
		for j, t := range l.Topics {
			topics[j] = t.Hex()
		}
		logs[i] = Log{Address: l.Address.Hex(), Topics: topics, Data: l.Data}
	}
	return &TransactionReceipt{
		TransactionHash: receipt.TxHash.Hex(),
		Status:          receipt.Status,
		Logs:            logs,
	}, nil
}

func (c *EthClient) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.rpc.ChainID(ctx)
}

func waitMined(ctx context.Context, rpc *ethclient.Client, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := rpc.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
