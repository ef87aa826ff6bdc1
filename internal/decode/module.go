package decode

import (
	"ChainSnap/internal/chain"
	"ChainSnap/internal/valuetree"
)

// positional field indexes of a module record, with and without a tier field
var (
	moduleFieldsTiered = map[string]int{
		"owner": 0, "id": 1, "name": 2, "data": 3, "url": 4,
		"collateral": 5, "take": 6, "tier": 7, "created_at": 8, "last_updated": 9,
	}
	moduleFieldsLegacy = map[string]int{
		"owner": 0, "id": 1, "name": 2, "data": 3, "url": 4,
		"collateral": 5, "take": 6, "tier": -1, "created_at": 7, "last_updated": 8,
	}
)

// Module decodes a module registry record.
func Module(v valuetree.Value) (chain.Module, error) {
	var m chain.Module

	rec, err := newRecord("value", v, 9)
	if err != nil {
		return m, err
	}

	pos := moduleFieldsTiered
	if !rec.isNamed() && len(rec.values) == 9 {
		pos = moduleFieldsLegacy
	}

	ownerValue, ownerPath, err := rec.field("owner", pos["owner"])
	if err != nil {
		return m, err
	}

	if m.Owner, err = identityAt(ownerPath, ownerValue); err != nil {
		return m, err
	}

	if m.ID, err = rec.uint("id", pos["id"], 64); err != nil {
		return m, err
	}

	nameValue, namePath, err := rec.field("name", pos["name"])
	if err != nil {
		return m, err
	}

	if m.Name, err = text(namePath, nameValue); err != nil {
		return m, err
	}

	dataValue, dataPath, ok := rec.lookup("data", pos["data"])
	if m.Data, err = optionalText(dataPath, dataValue, ok); err != nil {
		return m, err
	}

	urlValue, urlPath, ok := rec.lookup("url", pos["url"])
	if m.URL, err = optionalText(urlPath, urlValue, ok); err != nil {
		return m, err
	}

	collateral, collateralPath, err := rec.field("collateral", pos["collateral"])
	if err != nil {
		return m, err
	}

	if m.Collateral, err = amountAt(collateralPath, collateral); err != nil {
		return m, err
	}

	take, err := rec.uint("take", pos["take"], 8)
	if err != nil {
		return m, err
	}
	m.Take = uint8(take)

	if m.Tier, err = tier(rec, pos["tier"]); err != nil {
		return m, err
	}

	if m.CreatedAt, err = rec.uint("created_at", pos["created_at"], 64); err != nil {
		return m, err
	}

	if m.LastUpdated, err = rec.uint("last_updated", pos["last_updated"], 64); err != nil {
		return m, err
	}

	return m, nil
}

// tier decodes the optional tier variant; records without one are unapproved.
func tier(rec *record, pos int) (chain.ModuleTier, error) {
	v, path, ok := rec.lookup("tier", pos)
	if !ok {
		return chain.TierUnapproved, nil
	}

	variant, isVariant := v.(valuetree.Variant)
	if !isVariant {
		return 0, fail(path, "expected variant, got %s", valuetree.KindName(v))
	}

	t, err := chain.ParseTier(variant.Name)
	if err != nil {
		return 0, wrap(path, "unknown tier", err)
	}

	return t, nil
}

// ModuleID decodes an optional module index.
// It reports false when the value is None.
func ModuleID(v valuetree.Value) (uint64, bool, error) {
	inner, ok, err := option("value", v)
	if err != nil || !ok {
		return 0, false, err
	}

	id, err := uint64At("value", inner, 64)
	if err != nil {
		return 0, false, err
	}

	return id, true, nil
}
