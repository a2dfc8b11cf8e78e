package main

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lncommit/keychain"
	"github.com/urfave/cli"
)

func pubKeyHex(pub *btcec.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}

var nodeKeysCommand = cli.Command{
	Name:     "nodekeys",
	Category: "Keys",
	Usage:    "Show the public keys of the local node.",
	Description: `
	Derive the key of every key family of the local node from its seed. The
	channel master key is shown for the configured channel index.
	`,
	Action: nodeKeys,
}

type nodeKeysResponse struct {
	NodeID string            `json:"node_id"`
	Keys   map[string]string `json:"keys"`
}

func nodeKeys(ctx *cli.Context) error {
	keyRing, err := loadNodeKeys(ctx)
	if err != nil {
		return err
	}

	resp := &nodeKeysResponse{
		NodeID: pubKeyHex(keyRing.NodeID()),
		Keys:   make(map[string]string, len(keychain.NodeKeyFamilies)),
	}
	for _, fam := range keychain.NodeKeyFamilies {
		loc := keychain.KeyLocator{Family: fam}
		if fam == keychain.KeyFamilyChannelMaster {
			loc.Index = getConfig(ctx).ChannelIndex
		}

		desc, err := keyRing.DeriveKey(loc)
		if err != nil {
			return fmt.Errorf("unable to derive %v key: %w", fam, err)
		}
		resp.Keys[fam.String()] = pubKeyHex(desc.PubKey)
	}

	return printJSON(ctx, resp)
}

var chanKeysCommand = cli.Command{
	Name:     "chankeys",
	Category: "Keys",
	Usage:    "Show the basepoints of a channel.",
	Description: `
	Derive the base keys of the configured channel and show their public
	basepoints together with the per commitment point of --commitnum.

	With --remote_seed set the basepoints of the remote side are shown as
	well.
	`,
	Flags: []cli.Flag{
		paramsFlag,
		remoteSeedFlag,
		commitNumFlag,
	},
	Action: chanKeys,
}

type basepointsResponse struct {
	Funding        string `json:"funding"`
	Revocation     string `json:"revocation"`
	Payment        string `json:"payment"`
	DelayedPayment string `json:"delayed_payment"`
	Htlc           string `json:"htlc"`
}

func newBasepointsResponse(
	bp *keychain.ChannelBasepoints) *basepointsResponse {

	return &basepointsResponse{
		Funding:        pubKeyHex(bp.Funding),
		Revocation:     pubKeyHex(bp.Revocation),
		Payment:        pubKeyHex(bp.Payment),
		DelayedPayment: pubKeyHex(bp.DelayedPayment),
		Htlc:           pubKeyHex(bp.Htlc),
	}
}

type chanKeysResponse struct {
	ChanIndex       uint32              `json:"chan_index"`
	CommitNum       uint64              `json:"commit_num"`
	CommitmentPoint string              `json:"commitment_point"`
	Local           *basepointsResponse `json:"local"`
	Remote          *basepointsResponse `json:"remote,omitempty"`
}

func chanKeys(ctx *cli.Context) error {
	c, err := loadChannel(ctx, false)
	if err != nil {
		return err
	}

	commitNum := ctx.Uint64(commitNumFlag.Name)
	commitPoint, err := c.local.PerCommitmentPoint(commitNum)
	if err != nil {
		return err
	}

	resp := &chanKeysResponse{
		ChanIndex:       c.local.Index,
		CommitNum:       commitNum,
		CommitmentPoint: pubKeyHex(commitPoint),
		Local:           newBasepointsResponse(c.local.Basepoints()),
	}
	if c.remote != nil {
		resp.Remote = newBasepointsResponse(c.remote.Basepoints())
	}

	return printJSON(ctx, resp)
}

var secretCommand = cli.Command{
	Name:     "secret",
	Category: "Keys",
	Usage:    "Show a per commitment secret of a channel.",
	Description: `
	Derive the per commitment secret and point of commitment --commitnum of
	the configured channel. Revealing the secret revokes the commitment.
	`,
	Flags: []cli.Flag{
		paramsFlag,
		commitNumFlag,
	},
	Action: secret,
}

type secretResponse struct {
	CommitNum       uint64 `json:"commit_num"`
	Secret          string `json:"secret"`
	CommitmentPoint string `json:"commitment_point"`
}

func secret(ctx *cli.Context) error {
	c, err := loadChannel(ctx, false)
	if err != nil {
		return err
	}

	commitNum := ctx.Uint64(commitNumFlag.Name)
	commitSecret, err := c.local.CommitmentSecret(commitNum)
	if err != nil {
		return err
	}
	commitPoint, err := c.local.PerCommitmentPoint(commitNum)
	if err != nil {
		return err
	}

	return printJSON(ctx, &secretResponse{
		CommitNum:       commitNum,
		Secret:          hex.EncodeToString(commitSecret[:]),
		CommitmentPoint: pubKeyHex(commitPoint),
	})
}

var revocationCommand = cli.Command{
	Name:     "revocation",
	Category: "Keys",
	Usage:    "Show the revocation key of a local commitment.",
	Description: `
	Derive the revocation public key of local commitment --commitnum from
	the remote revocation basepoint, then rebuild its private key the way
	the remote party would once the commitment secret is revealed.
	`,
	Flags: []cli.Flag{
		paramsFlag,
		remoteSeedFlag,
		commitNumFlag,
	},
	Action: revocation,
}

type revocationResponse struct {
	CommitNum      uint64 `json:"commit_num"`
	RevocationKey  string `json:"revocation_key"`
	RevocationPriv string `json:"revocation_priv"`
}

func revocation(ctx *cli.Context) error {
	c, err := loadChannel(ctx, true)
	if err != nil {
		return err
	}

	commitNum := ctx.Uint64(commitNumFlag.Name)
	revKey, err := c.local.DeriveRevocationPubKey(
		c.remote.Basepoints().Revocation, commitNum,
	)
	if err != nil {
		return err
	}

	commitSecret, err := c.local.CommitmentSecret(commitNum)
	if err != nil {
		return err
	}
	revPriv, err := c.remote.RevocationPrivKey(commitSecret)
	if err != nil {
		return err
	}

	if !revPriv.PubKey().IsEqual(revKey) {
		return fmt.Errorf("revocation private key does not match "+
			"revocation key %x", revKey.SerializeCompressed())
	}

	return printJSON(ctx, &revocationResponse{
		CommitNum:      commitNum,
		RevocationKey:  pubKeyHex(revKey),
		RevocationPriv: hex.EncodeToString(revPriv.Serialize()),
	})
}
