package crypto

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/calehh/propvote/types"
	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
)

// PV signs transactions with a CometBFT private validator key file.
type PV struct {
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
}

func NewPV(privKey crypto.PrivKey) *PV {
	return &PV{
		privateKey: privKey,
		publicKey:  privKey.PubKey(),
	}
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, fmt.Errorf("error reading PrivValidator key from %v: %w", keyFilePath, err)
	}

	return &PV{
		privateKey: pvKey.PrivKey,
		publicKey:  pvKey.PubKey,
	}, nil
}

// GenFilePV writes a fresh ed25519 key to keyFilePath and returns it.
func GenFilePV(keyFilePath string) (*PV, error) {
	if err := os.MkdirAll(filepath.Dir(keyFilePath), 0o700); err != nil {
		return nil, err
	}
	stateFilePath := filepath.Join(filepath.Dir(keyFilePath), "priv_validator_state.json")
	filePV := privval.GenFilePV(keyFilePath, stateFilePath)
	filePV.Key.Save()
	return &PV{
		privateKey: filePV.Key.PrivKey,
		publicKey:  filePV.Key.PubKey,
	}, nil
}

func (k *PV) PublicKey() []byte {
	return k.publicKey.Bytes()
}

func (k *PV) Address() types.Address {
	return types.Address(k.publicKey.Address().String())
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}
