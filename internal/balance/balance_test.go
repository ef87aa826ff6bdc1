package balance

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/identity"
)

func testID(b byte) identity.Identity {
	var id identity.Identity
	id[0] = b

	return id
}

func account(id identity.Identity, free, reserved, frozen uint64) chain.AccountEntry {
	return chain.AccountEntry{
		ID:   id,
		Info: chain.AccountInfo{Data: chain.AccountData{Free: free, Reserved: reserved, Frozen: frozen}},
	}
}

func edge(from, to identity.Identity, v uint64) chain.StakeEdge {
	return chain.StakeEdge{From: from, To: to, Amount: amount.FromUint64(v)}
}

func totalsOf(values map[byte]uint64) Totals {
	t := make(Totals, len(values))
	for b, v := range values {
		t[testID(b)] = amount.FromUint64(v)
	}

	return t
}

func TestAggregateStakeCreditsStaker(t *testing.T) {
	id1, id2 := testID(1), testID(2)

	totals, err := Aggregate(
		[]chain.AccountEntry{account(id1, 100, 0, 0)},
		[]chain.StakeEdge{edge(id1, id2, 50)},
	)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if got := totals[id1]; got.Cmp(amount.FromUint64(150)) != 0 {
		t.Errorf("id1 = %s, want 150", got)
	}

	if _, ok := totals[id2]; ok {
		t.Errorf("recipient id2 should not have an entry")
	}
}

func TestAggregateStakeOnlyIdentity(t *testing.T) {
	staker := testID(9)

	totals, err := Aggregate(nil, []chain.StakeEdge{edge(staker, testID(1), 7), edge(staker, testID(2), 3)})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if got := totals[staker]; got.Cmp(amount.FromUint64(10)) != 0 {
		t.Fatalf("staker = %s, want 10", got)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	var accounts []chain.AccountEntry
	var stake []chain.StakeEdge

	for i := range 40 {
		accounts = append(accounts, account(testID(byte(i)), uint64(i*1000), uint64(i), uint64(i%3)))
		stake = append(stake, edge(testID(byte(i%7)), testID(byte(i)), uint64(i*13)))
	}

	want, err := Aggregate(accounts, stake)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	rng := rand.New(rand.NewPCG(1, 2))

	for range 10 {
		rng.Shuffle(len(accounts), func(i, j int) { accounts[i], accounts[j] = accounts[j], accounts[i] })
		rng.Shuffle(len(stake), func(i, j int) { stake[i], stake[j] = stake[j], stake[i] })

		got, err := Aggregate(accounts, stake)
		if err != nil {
			t.Fatalf("Aggregate: %v", err)
		}

		if !reflect.DeepEqual(got, want) {
			t.Fatal("permuted input changed the result")
		}
	}
}

func TestAggregateSumProperty(t *testing.T) {
	accounts := []chain.AccountEntry{
		account(testID(1), 10, 20, 30),
		account(testID(2), 1, 0, 0),
		account(testID(3), 0, 0, 5),
	}
	stake := []chain.StakeEdge{
		edge(testID(1), testID(2), 100),
		edge(testID(4), testID(1), 1000),
	}

	totals, err := Aggregate(accounts, stake)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	issuance, err := Issuance(totals)
	if err != nil {
		t.Fatalf("Issuance: %v", err)
	}

	// 60 + 1 + 5 from accounts, 1100 from stake
	if issuance.Cmp(amount.FromUint64(1166)) != 0 {
		t.Fatalf("issuance = %s, want 1166", issuance)
	}
}

func TestAggregateOverflow(t *testing.T) {
	ceiling := amount.MustParse("340282366920938463463374607431768211455")

	_, err := Aggregate(
		[]chain.AccountEntry{account(testID(1), 1, 0, 0)},
		[]chain.StakeEdge{{From: testID(1), To: testID(2), Amount: ceiling}},
	)

	if !errors.Is(err, amount.ErrOverflow) {
		t.Fatalf("err = %v, want ErrOverflow", err)
	}
}

func TestDust(t *testing.T) {
	totals := totalsOf(map[byte]uint64{1: 499, 2: 500, 3: 0, 4: 10_000, 5: 1})

	count, sum, err := Dust(totals, amount.FromUint64(500))
	if err != nil {
		t.Fatalf("Dust: %v", err)
	}

	if count != 3 || sum.Cmp(amount.FromUint64(500)) != 0 {
		t.Fatalf("dust = %d / %s, want 3 / 500", count, sum)
	}
}

func TestTopN(t *testing.T) {
	a, b, c := testID('a'), testID('b'), testID('c')
	totals := Totals{
		a: amount.FromUint64(300),
		b: amount.FromUint64(100),
		c: amount.FromUint64(500),
	}

	top := TopN(totals, 2)

	if len(top) != 2 || top[0].ID != c || top[1].ID != a {
		t.Fatalf("top = %+v, want [c a]", top)
	}

	if all := TopN(totals, 10); len(all) != 3 {
		t.Fatalf("TopN beyond size returned %d", len(all))
	}
}

func TestTopNTiesAreDeterministic(t *testing.T) {
	totals := totalsOf(map[byte]uint64{9: 5, 3: 5, 7: 5, 1: 8})

	for range 5 {
		top := TopN(totals, 4)

		want := []byte{1, 3, 7, 9}
		for i, r := range top {
			if r.ID[0] != want[i] {
				t.Fatalf("position %d = %d, want %d", i, r.ID[0], want[i])
			}
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(amount.FromUint64(25), amount.FromUint64(200)); got != 12.5 {
		t.Errorf("Percent = %v, want 12.5", got)
	}

	if got := Percent(amount.FromUint64(25), amount.Zero()); got != 0 {
		t.Errorf("Percent with zero whole = %v, want 0", got)
	}
}

func TestReport(t *testing.T) {
	totals := totalsOf(map[byte]uint64{
		1: 3_000_000_000,
		2: 1_000_000_000,
		3: 100,
	})

	report, err := BuildReport(totals, ReportOptions{
		Threshold: amount.FromUint64(500),
		Top:       2,
		Decimals:  9,
		Prefix:    identity.DefaultPrefix,
	})
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	var buf bytes.Buffer
	if _, err := report.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"Total Issuance: 4.0000001",
		"1 nonexistent accounts totalling 0.0000001",
		"Top 2 highest total balances:",
		testID(1).String() + ": 3 (75.0000%)",
		testID(2).String() + ": 1 (25.0000%)",
	}

	if len(lines) != 5 {
		t.Fatalf("report has %d lines:\n%s", len(lines), buf.String())
	}

	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}
