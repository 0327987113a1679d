// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package memdx

import (
	"context"
	"encoding/binary"
)

// GetRequest fetches a document by key (§6, opcode Get).
type GetRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
}

// GetResponse is the decoded result of a successful Get.
type GetResponse struct {
	Value    []byte
	Flags    uint32
	Cas      uint64
	Datatype DataType
}

// Get executes a Get op over d.
func Get(ctx context.Context, d Dispatcher, req *GetRequest) (*GetResponse, error) {
	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    OpCodeGet,
		VbucketID: req.VbucketID,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
	})
	if err != nil {
		return nil, err
	}

	value, datatype, err := decodeInboundValue(pkt.Value, pkt.Datatype)
	if err != nil {
		return nil, err
	}

	resp := &GetResponse{Value: value, Cas: pkt.Cas, Datatype: datatype}
	if len(pkt.Extras) >= 4 {
		resp.Flags = binary.BigEndian.Uint32(pkt.Extras[0:4])
	}
	return resp, nil
}

// decodeInboundValue reverses the per-connection compressor for any value
// carrying the Snappy datatype bit before it reaches the caller (§4.4
// "Inbound"); the returned datatype has the bit cleared since the value
// is no longer compressed. A value with no Snappy bit passes through
// unchanged.
func decodeInboundValue(value []byte, datatype DataType) ([]byte, DataType, error) {
	if !datatype.HasSnappy() {
		return value, datatype, nil
	}
	plain, err := Decompress(value)
	if err != nil {
		return nil, datatype, err
	}
	return plain, datatype &^ DataTypeSnappy, nil
}

// StoreRequest is the shared shape of Set/Add/Replace (§6).
type StoreRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
	Value        []byte
	Flags        uint32
	Datatype     DataType
	Expiry       uint32
	Cas          uint64
}

// StoreResponse carries the new CAS and, when the MutationSeqNo feature
// is negotiated, the resulting mutation token (§3 GLOSSARY).
type StoreResponse struct {
	Cas           uint64
	MutationToken MutationToken
	HasToken      bool
}

func storeExtras(flags, expiry uint32) []byte {
	extras := make([]byte, 8)
	binary.BigEndian.PutUint32(extras[0:4], flags)
	binary.BigEndian.PutUint32(extras[4:8], expiry)
	return extras
}

func doStore(ctx context.Context, d Dispatcher, op OpCode, req *StoreRequest) (*StoreResponse, error) {
	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    op,
		VbucketID: req.VbucketID,
		Datatype:  req.Datatype,
		Cas:       req.Cas,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
		Value:     req.Value,
		Extras:    storeExtras(req.Flags, req.Expiry),
	})
	if err != nil {
		return nil, err
	}

	resp := &StoreResponse{Cas: pkt.Cas}
	if mt, ok := extractMutationToken(pkt.Extras); ok {
		resp.MutationToken = mt
		resp.HasToken = true
	}
	return resp, nil
}

// Set performs an upsert.
func Set(ctx context.Context, d Dispatcher, req *StoreRequest) (*StoreResponse, error) {
	return doStore(ctx, d, OpCodeSet, req)
}

// Add fails with KeyExists if the document already exists.
func Add(ctx context.Context, d Dispatcher, req *StoreRequest) (*StoreResponse, error) {
	return doStore(ctx, d, OpCodeAdd, req)
}

// Replace fails with KeyNotFound if the document doesn't exist.
func Replace(ctx context.Context, d Dispatcher, req *StoreRequest) (*StoreResponse, error) {
	return doStore(ctx, d, OpCodeReplace, req)
}

// DeleteRequest removes a document by key, optionally CAS-guarded.
type DeleteRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
	Cas          uint64
}

// DeleteResponse carries the tombstone CAS and optional mutation token.
type DeleteResponse struct {
	Cas           uint64
	MutationToken MutationToken
	HasToken      bool
}

// Delete removes a document.
func Delete(ctx context.Context, d Dispatcher, req *DeleteRequest) (*DeleteResponse, error) {
	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    OpCodeDelete,
		VbucketID: req.VbucketID,
		Cas:       req.Cas,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
	})
	if err != nil {
		return nil, err
	}

	resp := &DeleteResponse{Cas: pkt.Cas}
	if mt, ok := extractMutationToken(pkt.Extras); ok {
		resp.MutationToken = mt
		resp.HasToken = true
	}
	return resp, nil
}

// CounterRequest is the shared shape of Increment/Decrement (§6).
type CounterRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
	Delta        uint64
	Initial      uint64
	Expiry       uint32
}

// CounterResponse carries the document's new numeric value.
type CounterResponse struct {
	Value uint64
	Cas   uint64
}

func doCounter(ctx context.Context, d Dispatcher, op OpCode, req *CounterRequest) (*CounterResponse, error) {
	extras := make([]byte, 20)
	binary.BigEndian.PutUint64(extras[0:8], req.Delta)
	binary.BigEndian.PutUint64(extras[8:16], req.Initial)
	binary.BigEndian.PutUint32(extras[16:20], req.Expiry)

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    op,
		VbucketID: req.VbucketID,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
		Extras:    extras,
	})
	if err != nil {
		return nil, err
	}

	resp := &CounterResponse{Cas: pkt.Cas}
	if len(pkt.Value) >= 8 {
		resp.Value = binary.BigEndian.Uint64(pkt.Value[0:8])
	}
	return resp, nil
}

// Increment adds delta to the document's counter value, creating it with
// initial if absent.
func Increment(ctx context.Context, d Dispatcher, req *CounterRequest) (*CounterResponse, error) {
	return doCounter(ctx, d, OpCodeIncrement, req)
}

// Decrement subtracts delta from the document's counter value, creating
// it with initial if absent.
func Decrement(ctx context.Context, d Dispatcher, req *CounterRequest) (*CounterResponse, error) {
	return doCounter(ctx, d, OpCodeDecrement, req)
}

// AppendPrependRequest is the shared shape of Append/Prepend (§6): no
// extras, the value is concatenated before or after the existing value.
type AppendPrependRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
	Value        []byte
	Cas          uint64
}

func doAppendPrepend(ctx context.Context, d Dispatcher, op OpCode, req *AppendPrependRequest) (*StoreResponse, error) {
	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    op,
		VbucketID: req.VbucketID,
		Cas:       req.Cas,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
		Value:     req.Value,
	})
	if err != nil {
		return nil, err
	}
	return &StoreResponse{Cas: pkt.Cas}, nil
}

// Append concatenates value after the document's existing value.
func Append(ctx context.Context, d Dispatcher, req *AppendPrependRequest) (*StoreResponse, error) {
	return doAppendPrepend(ctx, d, OpCodeAppend, req)
}

// Prepend concatenates value before the document's existing value.
func Prepend(ctx context.Context, d Dispatcher, req *AppendPrependRequest) (*StoreResponse, error) {
	return doAppendPrepend(ctx, d, OpCodePrepend, req)
}

// TouchRequest updates a document's expiry without fetching its value.
type TouchRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
	Expiry       uint32
}

// Touch refreshes a document's TTL.
func Touch(ctx context.Context, d Dispatcher, req *TouchRequest) (*StoreResponse, error) {
	extras := make([]byte, 4)
	binary.BigEndian.PutUint32(extras, req.Expiry)

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    OpCodeTouch,
		VbucketID: req.VbucketID,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
		Extras:    extras,
	})
	if err != nil {
		return nil, err
	}
	return &StoreResponse{Cas: pkt.Cas}, nil
}

// GetAndTouchRequest fetches a document's value and refreshes its TTL in
// one round-trip (GAT, §6).
type GetAndTouchRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
	Expiry       uint32
}

// GetAndTouch performs a GAT op.
func GetAndTouch(ctx context.Context, d Dispatcher, req *GetAndTouchRequest) (*GetResponse, error) {
	extras := make([]byte, 4)
	binary.BigEndian.PutUint32(extras, req.Expiry)

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    OpCodeGAT,
		VbucketID: req.VbucketID,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
		Extras:    extras,
	})
	if err != nil {
		return nil, err
	}

	value, datatype, err := decodeInboundValue(pkt.Value, pkt.Datatype)
	if err != nil {
		return nil, err
	}

	resp := &GetResponse{Value: value, Cas: pkt.Cas, Datatype: datatype}
	if len(pkt.Extras) >= 4 {
		resp.Flags = binary.BigEndian.Uint32(pkt.Extras[0:4])
	}
	return resp, nil
}

// GetLockedRequest fetches a document's value while acquiring a
// pessimistic lock on it for LockTime seconds.
type GetLockedRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
	LockTime     uint32
}

// GetLocked performs a GetLocked op.
func GetLocked(ctx context.Context, d Dispatcher, req *GetLockedRequest) (*GetResponse, error) {
	extras := make([]byte, 4)
	binary.BigEndian.PutUint32(extras, req.LockTime)

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    OpCodeGetLocked,
		VbucketID: req.VbucketID,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
		Extras:    extras,
	})
	if err != nil {
		return nil, err
	}

	value, datatype, err := decodeInboundValue(pkt.Value, pkt.Datatype)
	if err != nil {
		return nil, err
	}

	resp := &GetResponse{Value: value, Cas: pkt.Cas, Datatype: datatype}
	if len(pkt.Extras) >= 4 {
		resp.Flags = binary.BigEndian.Uint32(pkt.Extras[0:4])
	}
	return resp, nil
}

// UnlockRequest releases a GetLocked lock, CAS-guarded by the value
// GetLocked returned.
type UnlockRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
	Cas          uint64
}

// UnlockKey releases a previously acquired lock.
func UnlockKey(ctx context.Context, d Dispatcher, req *UnlockRequest) error {
	_, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    OpCodeUnlockKey,
		VbucketID: req.VbucketID,
		Cas:       req.Cas,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
	})
	return err
}

// GetMetaRequest fetches a document's metadata without its value.
type GetMetaRequest struct {
	VbucketID    uint16
	CollectionID uint32
	Key          []byte
}

// GetMetaResponse carries a document's metadata (§6): whether it is a
// tombstone, its flags/expiry, and its internal sequence number.
type GetMetaResponse struct {
	Deleted  bool
	Flags    uint32
	Expiry   uint32
	SeqNo    uint64
	Cas      uint64
	Datatype DataType
}

// GetMeta fetches a document's metadata.
func GetMeta(ctx context.Context, d Dispatcher, req *GetMetaRequest) (*GetMetaResponse, error) {
	// Requesting extended meta (format version 2) surfaces the datatype
	// byte; see couchbase's protocol doc for get_meta.
	extras := []byte{0x02}

	pkt, err := execSimple(ctx, d, &Packet{
		Magic:     MagicReq,
		OpCode:    OpCodeGetMeta,
		VbucketID: req.VbucketID,
		Key:       encodeCollectionKey(req.CollectionID, req.Key),
		Extras:    extras,
	})
	if err != nil {
		return nil, err
	}

	resp := &GetMetaResponse{Cas: pkt.Cas}
	if len(pkt.Extras) >= 20 {
		resp.Deleted = binary.BigEndian.Uint32(pkt.Extras[0:4]) != 0
		resp.Flags = binary.BigEndian.Uint32(pkt.Extras[4:8])
		resp.Expiry = binary.BigEndian.Uint32(pkt.Extras[8:12])
		resp.SeqNo = binary.BigEndian.Uint64(pkt.Extras[12:20])
	}
	if len(pkt.Extras) >= 21 {
		resp.Datatype = DataType(pkt.Extras[20])
	}
	return resp, nil
}

// encodeCollectionKey prefixes key with collectionID as an unsigned
// LEB128 varint when collections are in use (collectionID != 0 acts as
// the "non-default collection" signal for callers that always resolve
// through the collection cache; the default collection uses id 0 and
// still encodes its single zero byte once collections are enabled).
func encodeCollectionKey(collectionID uint32, key []byte) []byte {
	var leb [5]byte
	n := 0
	v := collectionID
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			leb[n] = b | 0x80
			n++
			continue
		}
		leb[n] = b
		n++
		break
	}

	out := make([]byte, 0, n+len(key))
	out = append(out, leb[:n]...)
	out = append(out, key...)
	return out
}
