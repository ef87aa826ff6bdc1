package decode

import (
	"ChainSnap/internal/amount"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/valuetree"
)

// AccountInfo decodes a system account record.
//
// Named layouts are matched by field name and may carry extra fields;
// positional layouts are (nonce, consumers, providers, sufficients, data).
func AccountInfo(v valuetree.Value) (chain.AccountInfo, error) {
	var info chain.AccountInfo

	rec, err := newRecord("value", v, 5)
	if err != nil {
		return info, err
	}

	nonce, err := rec.uint("nonce", 0, 32)
	if err != nil {
		return info, err
	}

	consumers, err := rec.uint("consumers", 1, 32)
	if err != nil {
		return info, err
	}

	providers, err := rec.uint("providers", 2, 32)
	if err != nil {
		return info, err
	}

	sufficients, err := rec.uint("sufficients", 3, 32)
	if err != nil {
		return info, err
	}

	dataValue, dataPath, err := rec.field("data", 4)
	if err != nil {
		return info, err
	}

	data, err := accountData(dataPath, dataValue)
	if err != nil {
		return info, err
	}

	info = chain.AccountInfo{
		Nonce:       uint32(nonce),
		Consumers:   uint32(consumers),
		Providers:   uint32(providers),
		Sufficients: uint32(sufficients),
		Data:        data,
	}

	return info, nil
}

// accountData decodes the balance record (free, reserved, frozen, flags).
func accountData(path string, v valuetree.Value) (chain.AccountData, error) {
	var data chain.AccountData

	rec, err := newRecord(path, v, 3)
	if err != nil {
		return data, err
	}

	if data.Free, err = rec.uint("free", 0, 64); err != nil {
		return data, err
	}

	if data.Reserved, err = rec.uint("reserved", 1, 64); err != nil {
		return data, err
	}

	if data.Frozen, err = frozen(rec); err != nil {
		return data, err
	}

	flags, flagsPath, ok := rec.lookup("flags", 3)
	if ok {
		if data.Flags, err = amountAt(flagsPath, flags); err != nil {
			return data, err
		}
	} else {
		data.Flags = amount.Zero()
	}

	return data, nil
}

// frozen reads the frozen balance, falling back to the larger of the
// legacy misc_frozen and fee_frozen fields.
func frozen(rec *record) (uint64, error) {
	if !rec.isNamed() {
		return rec.uint("frozen", 2, 64)
	}

	if _, _, ok := rec.lookup("frozen", 2); ok {
		return rec.uint("frozen", 2, 64)
	}

	misc, err := rec.uint("misc_frozen", 2, 64)
	if err != nil {
		return 0, err
	}

	fee, err := rec.uint("fee_frozen", 3, 64)
	if err != nil {
		return 0, err
	}

	return max(misc, fee), nil
}
