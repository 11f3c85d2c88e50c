package tradelog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"bazaarcraft/internal/market"
)

func TestLogger_WritesDecodableRecords(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	l.RecordTrade(market.TradeRecord{
		Kind: "BUY", ListingID: "l1", ShopID: "s1", Agent: "a1",
		Item: "coal", Quantity: 3, Total: 6, Tax: 0.3, Territory: "Rivertown",
	})
	l.RecordTrade(market.TradeRecord{
		Kind: "COLLECT", ListingID: "l1", ShopID: "s1", Agent: "a1", Total: 6,
	})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ents, err := os.ReadDir(dir)
	if err != nil || len(ents) != 1 {
		t.Fatalf("readdir: %v, %d entries", err, len(ents))
	}
	name := ents[0].Name()
	if !strings.HasPrefix(name, "trades-") || !strings.HasSuffix(name, ".jsonl.zst") {
		t.Fatalf("file name %q", name)
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var records []market.TradeRecord
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var rec market.TradeRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("%d records, want 2", len(records))
	}
	if records[0].Kind != "BUY" || records[0].Quantity != 3 || records[0].Territory != "Rivertown" {
		t.Fatalf("first record = %+v", records[0])
	}
	if records[1].Kind != "COLLECT" || records[1].Total != 6 {
		t.Fatalf("second record = %+v", records[1])
	}
}
