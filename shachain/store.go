package shachain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	// ErrUnknownSecret is returned by LookUp for commitment numbers that
	// have not been revealed yet.
	ErrUnknownSecret = errors.New("secret not derivable from store")

	// ErrInconsistentSecret is returned when a new secret does not
	// reproduce the secrets already held by the store.
	ErrInconsistentSecret = errors.New("secret isn't derivable from " +
		"previous ones")

	// ErrStoreFull is returned once all 2^48 secrets have been received.
	ErrStoreFull = errors.New("revocation store is full")
)

// Store keeps the revocation secrets received from a counterparty. Secrets
// arrive in commitment order and any of them can be looked up again later.
type Store interface {
	// LookUp returns the secret of a previously revoked commitment.
	LookUp(uint64) (*chainhash.Hash, error)

	// AddNextEntry stores the secret of the next revoked commitment.
	//
	// NOTE: The secrets MUST be inserted in the order they're produced by
	// a Producer.
	AddNextEntry(*chainhash.Hash) error

	// Encode writes a binary serialization of the store.
	Encode(io.Writer) error
}

// RevocationStore stores N received secrets in O(log N) space following the
// BOLT #3 "efficient per-commitment secret storage" scheme. Bucket i holds
// the most recent secret whose chain index has i trailing zeros. Every
// earlier secret can be derived from one of the buckets.
type RevocationStore struct {
	// lenBuckets stores the number of currently active buckets.
	lenBuckets uint8

	buckets [maxHeight]element

	// index is the chain index the next secret must have.
	index index
}

// A compile time check to ensure RevocationStore implements the Store
// interface.
var _ Store = (*RevocationStore)(nil)

// NewRevocationStore creates an empty store.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{
		index: startIndex,
	}
}

// NewRevocationStoreFromBytes recreates a store from the output of Encode.
func NewRevocationStoreFromBytes(r io.Reader) (*RevocationStore, error) {
	store := &RevocationStore{}

	err := binary.Read(r, binary.BigEndian, &store.lenBuckets)
	if err != nil {
		return nil, err
	}
	if store.lenBuckets > maxHeight {
		return nil, fmt.Errorf("invalid bucket count %d",
			store.lenBuckets)
	}

	for i := uint8(0); i < store.lenBuckets; i++ {
		var hashIndex index
		err := binary.Read(r, binary.BigEndian, &hashIndex)
		if err != nil {
			return nil, err
		}

		var nextHash chainhash.Hash
		if _, err := io.ReadFull(r, nextHash[:]); err != nil {
			return nil, err
		}

		store.buckets[i] = element{
			index: hashIndex,
			hash:  nextHash,
		}
	}

	if err := binary.Read(r, binary.BigEndian, &store.index); err != nil {
		return nil, err
	}

	return store, nil
}

// LookUp returns the secret of commitment number v if it has been received.
//
// NOTE: This function is part of the Store interface.
func (store *RevocationStore) LookUp(v uint64) (*chainhash.Hash, error) {
	if v > MaxIndex {
		return nil, ErrIndexOutOfRange
	}
	ind := newIndex(v)

	// Secrets not yet received have a lower index than every bucket
	// element, so deriving them fails for all buckets.
	for i := uint8(0); i < store.lenBuckets; i++ {
		element, err := store.buckets[i].derive(ind)
		if err != nil {
			continue
		}

		return &element.hash, nil
	}

	return nil, fmt.Errorf("%w: commitment %d", ErrUnknownSecret, v)
}

// AddNextEntry stores the next secret after checking that it reproduces the
// secrets in every lower bucket.
//
// NOTE: This function is part of the Store interface.
func (store *RevocationStore) AddNextEntry(hash *chainhash.Hash) error {
	// The root secret is the last one a chain can produce and is kept in
	// the top bucket.
	top := store.buckets[maxHeight-1]
	if store.lenBuckets == maxHeight && top.index == rootIndex {
		return ErrStoreFull
	}

	newElement := &element{
		index: store.index,
		hash:  *hash,
	}

	bucket := countTrailingZeros(newElement.index)
	if bucket >= maxHeight {
		bucket = maxHeight - 1
	}

	for i := uint8(0); i < bucket; i++ {
		e, err := newElement.derive(store.buckets[i].index)
		if err != nil {
			return err
		}

		if !e.isEqual(&store.buckets[i]) {
			return fmt.Errorf("%w: index %d", ErrInconsistentSecret,
				newElement.index)
		}
	}

	store.buckets[bucket] = *newElement
	if bucket+1 > store.lenBuckets {
		store.lenBuckets = bucket + 1
	}

	if store.index > rootIndex {
		store.index--
	}

	return nil
}

// Encode writes a binary serialization of the store to w.
//
// NOTE: This function is part of the Store interface.
func (store *RevocationStore) Encode(w io.Writer) error {
	err := binary.Write(w, binary.BigEndian, store.lenBuckets)
	if err != nil {
		return err
	}

	for i := uint8(0); i < store.lenBuckets; i++ {
		element := store.buckets[i]

		err := binary.Write(w, binary.BigEndian, element.index)
		if err != nil {
			return err
		}

		if _, err = w.Write(element.hash[:]); err != nil {
			return err
		}
	}

	return binary.Write(w, binary.BigEndian, store.index)
}
