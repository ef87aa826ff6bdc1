package network

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"ChainSnap/internal/ledger"
	"ChainSnap/internal/types"
)

// query is a decoded QueryRequest.
type query struct {
	id     uint64
	method types.QueryMethod
	page   ledger.PageRequest
	fetch  ledger.FetchRequest
}

// reply is a QueryResponse before encoding.
type reply struct {
	id    uint64
	err   string
	root  ledger.Root
	page  *ledger.Page
	data  []byte
	found bool
}

func encodeQuery(q query) []byte {
	b := flatbuffers.NewBuilder(256)

	var pallet, entry, prefix, startKey, at, key flatbuffers.UOffsetT

	switch q.method {
	case types.QueryMethodPage:
		pallet = b.CreateString(q.page.Namespace.Pallet)
		entry = b.CreateString(q.page.Namespace.Entry)
		prefix = b.CreateByteVector(q.page.Prefix)
		startKey = b.CreateByteVector(q.page.StartKey)
		at = b.CreateByteVector(q.page.At.Bytes())
	case types.QueryMethodFetch:
		key = b.CreateByteVector(q.fetch.Key)
		at = b.CreateByteVector(q.fetch.At.Bytes())
	}

	types.QueryRequestStart(b)
	types.QueryRequestAddRequestId(b, q.id)
	types.QueryRequestAddMethod(b, q.method)

	if q.method == types.QueryMethodPage {
		types.QueryRequestAddPallet(b, pallet)
		types.QueryRequestAddEntry(b, entry)
		types.QueryRequestAddPrefix(b, prefix)
		types.QueryRequestAddStartKey(b, startKey)
		types.QueryRequestAddLimit(b, uint32(max(q.page.Limit, 0)))
	}

	if q.method == types.QueryMethodFetch {
		types.QueryRequestAddKey(b, key)
	}

	if q.method != types.QueryMethodHead {
		types.QueryRequestAddAt(b, at)
	}

	b.Finish(types.QueryRequestEnd(b))

	return b.FinishedBytes()
}

func decodeQuery(data []byte) (q query, err error) {
	defer recoverMalformed(&err)

	req := types.GetRootAsQueryRequest(data, 0)
	q.id = req.RequestId()
	q.method = req.Method()

	at, err := ledger.RootFromBytes(req.AtBytes())
	if err != nil {
		return q, err
	}

	switch q.method {
	case types.QueryMethodHead:
	case types.QueryMethodPage:
		q.page = ledger.PageRequest{
			Namespace: ledger.Namespace{Pallet: string(req.Pallet()), Entry: string(req.Entry())},
			Prefix:    clone(req.PrefixBytes()),
			StartKey:  clone(req.StartKeyBytes()),
			At:        at,
			Limit:     int(req.Limit()),
		}
	case types.QueryMethodFetch:
		q.fetch = ledger.FetchRequest{Key: clone(req.KeyBytes()), At: at}
	default:
		return q, fmt.Errorf("unknown method %s", q.method)
	}

	return q, nil
}

func encodeReply(r reply) []byte {
	b := flatbuffers.NewBuilder(1024)

	var errText, entries, nextKey, data flatbuffers.UOffsetT

	if r.err != "" {
		errText = b.CreateString(r.err)
	}

	if r.page != nil {
		offsets := make([]flatbuffers.UOffsetT, len(r.page.Entries))
		for i, e := range r.page.Entries {
			key := b.CreateByteVector(e.Key)
			value := b.CreateByteVector(e.Data)

			types.RawEntryStart(b)
			types.RawEntryAddKey(b, key)
			types.RawEntryAddData(b, value)
			offsets[i] = types.RawEntryEnd(b)
		}

		types.QueryResponseStartEntriesVector(b, len(offsets))
		for i := len(offsets) - 1; i >= 0; i-- {
			b.PrependUOffsetT(offsets[i])
		}
		entries = b.EndVector(len(offsets))

		nextKey = b.CreateByteVector(r.page.NextKey)
	}

	if r.data != nil {
		data = b.CreateByteVector(r.data)
	}

	root := b.CreateByteVector(r.root.Bytes())

	types.QueryResponseStart(b)
	types.QueryResponseAddRequestId(b, r.id)
	types.QueryResponseAddRoot(b, root)

	if r.err != "" {
		types.QueryResponseAddError(b, errText)
	}

	if r.page != nil {
		types.QueryResponseAddEntries(b, entries)
		types.QueryResponseAddNextKey(b, nextKey)
	}

	if r.data != nil {
		types.QueryResponseAddData(b, data)
	}

	types.QueryResponseAddFound(b, r.found)

	b.Finish(types.QueryResponseEnd(b))

	return b.FinishedBytes()
}

func decodeReply(data []byte) (r reply, err error) {
	defer recoverMalformed(&err)

	resp := types.GetRootAsQueryResponse(data, 0)
	r.id = resp.RequestId()
	r.err = string(resp.Error())
	r.found = resp.Found()
	r.data = clone(resp.DataBytes())

	if r.root, err = ledger.RootFromBytes(resp.RootBytes()); err != nil {
		return r, err
	}

	page := &ledger.Page{Root: r.root, NextKey: clone(resp.NextKeyBytes())}

	var entry types.RawEntry
	for i := range resp.EntriesLength() {
		if !resp.Entries(&entry, i) {
			return r, fmt.Errorf("entry %d missing", i)
		}

		page.Entries = append(page.Entries, ledger.RawEntry{
			Key:  clone(entry.KeyBytes()),
			Data: clone(entry.DataBytes()),
		})
	}

	r.page = page

	return r, nil
}

// clone copies a flatbuffers byte slice out of the message buffer.
func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}

	out := make([]byte, len(b))
	copy(out, b)

	return out
}

// recoverMalformed turns an out-of-range read on a corrupt buffer into an error.
func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed message: %v", r)
	}
}
