package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/calehh/propvote/app"
	"github.com/calehh/propvote/crypto"
	"github.com/calehh/propvote/tx"
	"github.com/cometbft/cometbft/rpc/client/http"
)

type txClient struct {
	cli *http.HTTP
}

func newTxClient(url string) (*txClient, error) {
	cli, err := http.New(url, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	return &txClient{cli: cli}, nil
}

func (c *txClient) chainId(ctx context.Context) (string, error) {
	gres, err := c.cli.Genesis(ctx)
	if err != nil {
		return "", fmt.Errorf("get chain genesis: %w", err)
	}
	return gres.Genesis.ChainID, nil
}

func (c *txClient) query(ctx context.Context, path string, data []byte, out any) error {
	res, err := c.cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return fmt.Errorf("query %s: %w", path, err)
	}
	if res.Response.Code != 0 {
		return fmt.Errorf("query %s: code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}

func (c *txClient) nonce(ctx context.Context, pv *crypto.PV) (uint64, error) {
	var res app.NonceResult
	if err := c.query(ctx, "/nonce/", []byte(pv.Address()), &res); err != nil {
		return 0, err
	}
	return res.Nonce, nil
}

// buildTx signs payload as a tx of type typ.
func buildTx(chainId string, pv *crypto.PV, nonce uint64, typ tx.TxType, payload any) ([]byte, error) {
	btx := &tx.Tx{
		Version: tx.TxVersion1,
		Type:    typ,
		Nonce:   nonce,
		Tx:      payload,
	}
	if err := btx.Sign(chainId, pv); err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return tx.MarshalTx(btx)
}

// send signs and broadcasts payload with the key at keyPath. A negative
// nonce is replaced by the one the node expects. With noSend the signed tx
// is printed as hex instead.
func send(url, keyPath string, nonce int64, noSend bool, typ tx.TxType, payload any) error {
	pv, err := crypto.LoadFilePV(keyPath)
	if err != nil {
		return err
	}
	c, err := newTxClient(url)
	if err != nil {
		return err
	}
	ctx := context.Background()
	chainId, err := c.chainId(ctx)
	if err != nil {
		return err
	}
	var n uint64
	if nonce < 0 {
		if n, err = c.nonce(ctx, pv); err != nil {
			return err
		}
	} else {
		n = uint64(nonce)
	}
	dat, err := buildTx(chainId, pv, n, typ, payload)
	if err != nil {
		return err
	}
	if noSend {
		fmt.Println(hex.EncodeToString(dat))
		return nil
	}
	res, err := c.cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	if res.Code != tx.CodeOK {
		return fmt.Errorf("tx rejected: code %d: %s", res.Code, res.Log)
	}
	fmt.Printf("tx:%s sender:%s nonce:%d\n", res.Hash, pv.Address(), n)
	return nil
}
