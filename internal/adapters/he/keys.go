package he

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// keyBundle is the persisted form of a key set. The binary layouts inside
// are lattigo's own.
type keyBundle struct {
	Preset Preset `json:"preset"`
	Secret []byte `json:"secret"`
	Public []byte `json:"public"`
	Relin  []byte `json:"relin"`
}

type keySet struct {
	sk  *rlwe.SecretKey
	pk  *rlwe.PublicKey
	rlk *rlwe.RelinearizationKey
}

func generateKeys(params ckks.Parameters) keySet {
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return keySet{sk: sk, pk: pk, rlk: kgen.GenRelinearizationKeyNew(sk)}
}

func (k keySet) marshal(preset Preset) ([]byte, error) {
	var (
		b   keyBundle
		err error
	)
	b.Preset = preset
	if b.Secret, err = k.sk.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("marshal secret key: %w", err)
	}
	if b.Public, err = k.pk.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	if b.Relin, err = k.rlk.MarshalBinary(); err != nil {
		return nil, fmt.Errorf("marshal relinearization key: %w", err)
	}
	return json.Marshal(b)
}

func unmarshalKeys(payload []byte, preset Preset) (keySet, error) {
	var b keyBundle
	if err := json.Unmarshal(payload, &b); err != nil {
		return keySet{}, fmt.Errorf("decode key bundle: %w", err)
	}
	if b.Preset != preset {
		return keySet{}, fmt.Errorf("stored keys use preset %q, configured %q", b.Preset, preset)
	}
	k := keySet{sk: new(rlwe.SecretKey), pk: new(rlwe.PublicKey), rlk: new(rlwe.RelinearizationKey)}
	if err := k.sk.UnmarshalBinary(b.Secret); err != nil {
		return keySet{}, fmt.Errorf("unmarshal secret key: %w", err)
	}
	if err := k.pk.UnmarshalBinary(b.Public); err != nil {
		return keySet{}, fmt.Errorf("unmarshal public key: %w", err)
	}
	if err := k.rlk.UnmarshalBinary(b.Relin); err != nil {
		return keySet{}, fmt.Errorf("unmarshal relinearization key: %w", err)
	}
	return k, nil
}

// loadOrGenerate restores keys from ks, or generates and stores a new set.
func loadOrGenerate(ctx context.Context, ks KeyStore, params ckks.Parameters, preset Preset) (keySet, bool, error) {
	if ks != nil {
		payload, err := ks.LoadKeys(ctx)
		if err != nil {
			return keySet{}, false, fmt.Errorf("load keys: %w", err)
		}
		if payload != nil {
			k, err := unmarshalKeys(payload, preset)
			return k, true, err
		}
	}

	k := generateKeys(params)
	if ks != nil {
		payload, err := k.marshal(preset)
		if err != nil {
			return keySet{}, false, err
		}
		if err := ks.SaveKeys(ctx, payload); err != nil {
			return keySet{}, false, fmt.Errorf("save keys: %w", err)
		}
	}
	return k, false, nil
}

// fingerprint identifies a public key so persisted ciphertexts are never
// folded under a different key set.
func fingerprint(pk *rlwe.PublicKey) (string, error) {
	raw, err := pk.MarshalBinary()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16]), nil
}
